package store

import (
	"slices"

	"github.com/tenx/certdash/auth"
	"github.com/tenx/certdash/certificate"
)

// State is the whole client state: one slice per domain.
type State struct {
	Auth         AuthState        `json:"auth"`
	Certificates CertificateState `json:"certificates"`
	Wallet       WalletState      `json:"wallet"`
}

// AuthState holds the singleton session. A nil Session means logged out.
type AuthState struct {
	Session          *auth.Session `json:"user"`
	IsLoading        bool          `json:"isLoading"`
	IsLoggingSuccess bool          `json:"isLoggingSuccess"`
	Error            string        `json:"error,omitempty"`
}

// CertificateState holds the certificate collection and its request flags.
// Flags never expire on their own; CleanUpStatus resets them.
type CertificateState struct {
	Certificates    []certificate.Certificate `json:"certificates"`
	Selected        *certificate.Certificate  `json:"certificate,omitempty"`
	IsLoading       bool                      `json:"isLoading"`
	IsCreateSuccess bool                      `json:"isCreateSuccess"`
	IsUpdateSuccess bool                      `json:"isUpdateSuccess"`
	IsDeleteSuccess bool                      `json:"isDeleteSuccess"`
	Error           string                    `json:"error,omitempty"`
}

// WalletState tracks the asset creation flow.
type WalletState struct {
	TxHash          string `json:"txHash,omitempty"`
	AssetURL        string `json:"assetUrl,omitempty"`
	IsLoading       bool   `json:"isLoading"`
	IsCreateSuccess bool   `json:"isCreateSuccess"`
	Error           string `json:"error,omitempty"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.Auth.Session = s.Auth.Session.Clone()
	out.Certificates.Certificates = slices.Clone(s.Certificates.Certificates)
	if s.Certificates.Selected != nil {
		sel := *s.Certificates.Selected
		out.Certificates.Selected = &sel
	}
	return out
}

// LoggedIn reports whether a session is active.
func (s State) LoggedIn() bool {
	return s.Auth.Session != nil
}
