package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tenx/certdash/certificate"
	"github.com/tenx/certdash/transport"
)

// ErrUnknownPath is returned for update paths the API does not serve. Such
// requests are never sent.
var ErrUnknownPath = errors.New("unknown certificate update path")

// CertificateService calls the certificate resources.
type CertificateService struct {
	tc *transport.Client
}

// List fetches every certificate visible to the session: GET /certificates.
func (s *CertificateService) List(ctx context.Context) ([]certificate.Certificate, error) {
	certs, err := transport.Get[[]certificate.Certificate](ctx, s.tc, "certificates")
	if err != nil {
		return nil, err
	}
	if certs == nil {
		certs = []certificate.Certificate{}
	}
	return certs, nil
}

type createBody struct {
	UserID          int              `json:"user_id"`
	ChallengeID     int              `json:"challenge_id"`
	CertificateName string           `json:"certificate_name"`
	Title           string           `json:"title"`
	Score           *decimal.Decimal `json:"score,omitempty"`
}

// Create issues a new certificate: POST /certificates.
func (s *CertificateService) Create(ctx context.Context, req certificate.CreateRequest) (certificate.Certificate, error) {
	return transport.Post[certificate.Certificate](ctx, s.tc, "certificates", createBody{
		UserID:          req.UserID,
		ChallengeID:     req.ChallengeID,
		CertificateName: req.CertificateName,
		Title:           req.CertificateName,
		Score:           req.Score,
	})
}

type updateBody struct {
	Password string `json:"password"`
}

// Update runs an update sub-operation on certificate id:
// PUT /certificates/{path}/{id}.
func (s *CertificateService) Update(ctx context.Context, path certificate.UpdatePath, id int, password []byte) (certificate.Certificate, error) {
	if !path.Valid() {
		return certificate.Certificate{}, fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}
	resource := fmt.Sprintf("certificates/%s/%d", path, id)
	return transport.Put[certificate.Certificate](ctx, s.tc, resource, updateBody{Password: string(password)})
}
