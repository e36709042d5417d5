// Package certificate models issued certificates and the role-gated actions
// a user may take on them.
package certificate

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultContentGateway serves certificate images by content hash.
const DefaultContentGateway = "https://gateway.pinata.cloud/ipfs/"

// Status is the approval status of a certificate transfer.
type Status string

const (
	StatusNoRequest Status = "NoRequest"
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusDenied    Status = "Denied"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNoRequest, StatusPending, StatusApproved, StatusDenied:
		return true
	}
	return false
}

// Certificate is one issued certificate as returned by the API.
type Certificate struct {
	ID          int             `json:"id"`
	UserID      int             `json:"user_id"`
	StaffID     int             `json:"staff_id"`
	ChallengeID int             `json:"challenge_id"`
	Title       string          `json:"title"`
	IssuedDate  string          `json:"issued_date"`
	Status      Status          `json:"is_approved"`
	IPFSHash    string          `json:"ipfs_hash"`
	NFTID       string          `json:"nft_id"`
	Score       decimal.Decimal `json:"score"`
}

// ContentURL returns the gateway URL of the certificate image. It is empty
// until the certificate is approved or when no hash is recorded.
func (c Certificate) ContentURL(gateway string) string {
	if c.Status != StatusApproved || c.IPFSHash == "" {
		return ""
	}
	if gateway == "" {
		gateway = DefaultContentGateway
	}
	if !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	return gateway + c.IPFSHash
}

// CreateRequest is the body of POST /certificates.
type CreateRequest struct {
	UserID          int              `json:"user_id"`
	ChallengeID     int              `json:"challenge_id"`
	CertificateName string           `json:"certificate_name"`
	Score           *decimal.Decimal `json:"score,omitempty"`
}
