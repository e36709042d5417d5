package transport

import (
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout bounds each request unless overridden with WithTimeout.
const DefaultTimeout = 30 * time.Second

// CredentialSource yields the bearer token for outgoing requests. An empty
// token means no Authorization header is sent.
type CredentialSource interface {
	Token() string
}

// CredentialFunc adapts a function to CredentialSource.
type CredentialFunc func() string

func (f CredentialFunc) Token() string { return f() }

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// WithCredentials sets the source of the bearer token.
func WithCredentials(src CredentialSource) Option {
	return func(c *Client) {
		c.creds = src
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}
