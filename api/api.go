// Package api maps dashboard operations onto the certificate REST
// resources.
package api

import "github.com/tenx/certdash/transport"

// Client groups the resource services.
type Client struct {
	Auth         *AuthService
	Certificates *CertificateService
}

// New builds a Client over tc.
func New(tc *transport.Client) *Client {
	return &Client{
		Auth:         &AuthService{tc: tc},
		Certificates: &CertificateService{tc: tc},
	}
}
