package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/tenx/certdash/auth"
	"github.com/tenx/certdash/transport"
)

// ErrIncompleteSession is returned when the login endpoint succeeds without
// issuing a token.
var ErrIncompleteSession = errors.New("login response carries no token")

// LoginRequest holds the submitted credentials.
type LoginRequest struct {
	Username string
	Password []byte
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthService calls the authentication resource.
type AuthService struct {
	tc *transport.Client
}

// Login exchanges credentials for a session: POST /login.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*auth.Session, error) {
	sess, err := transport.Post[auth.Session](ctx, s.tc, "login", loginBody{
		Username: req.Username,
		Password: string(req.Password),
	})
	if err != nil {
		return nil, err
	}
	if sess.Token == "" {
		return nil, fmt.Errorf("login %s: %w", req.Username, ErrIncompleteSession)
	}
	if sess.Username == "" {
		sess.Username = req.Username
	}
	return &sess, nil
}
