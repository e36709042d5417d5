// Package auth holds the authenticated identity of the dashboard user.
package auth

import (
	"encoding/json"
	"fmt"
)

// Role is the user's role as reported by the login endpoint.
type Role string

const (
	RoleIssuer     Role = "Issuer"
	RoleTrainee    Role = "Trainee"
	RoleSuperAdmin Role = "SuperAdmin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleIssuer, RoleTrainee, RoleSuperAdmin:
		return true
	}
	return false
}

// ParseRole converts s into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Session is the authenticated identity. The token is an opaque bearer
// credential; nothing in the client inspects it.
type Session struct {
	Token          string `json:"token"`
	Username       string `json:"username,omitempty"`
	AccountAddress string `json:"account_address,omitempty"`
	Role           Role   `json:"role"`
}

// UnmarshalJSON accepts the token as either "token" or "access_token".
func (s *Session) UnmarshalJSON(data []byte) error {
	type plain Session
	var wire struct {
		plain
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*s = Session(wire.plain)
	if s.Token == "" {
		s.Token = wire.AccessToken
	}
	return nil
}

// Clone returns a copy of s, or nil.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// String renders the session without its token.
func (s *Session) String() string {
	if s == nil {
		return "<no session>"
	}
	return fmt.Sprintf("%s (%s)", s.Username, s.Role)
}
