package intent

import "github.com/tenx/certdash/auth"

const (
	TypeLogin           = "auth/LoginAction"
	TypeLoginSuccess    = "auth/LoginSuccess"
	TypeLoginFailure    = "auth/LoginFailure"
	TypeLogout          = "auth/Logout"
	TypeCleanAuthStatus = "auth/CleanStatus"
)

// Login asks for a session for Username.
type Login struct {
	Username string `json:"username"`
	Password Secret `json:"-"`
}

// LoginSuccess carries the issued session.
type LoginSuccess struct {
	Session *auth.Session `json:"-"`
}

// LoginFailure carries the user-facing failure message.
type LoginFailure struct {
	Message string `json:"message"`
}

// Logout clears the session.
type Logout struct{}

// CleanAuthStatus resets the auth slice's transient flags.
type CleanAuthStatus struct{}

func (Login) Type() string           { return TypeLogin }
func (LoginSuccess) Type() string    { return TypeLoginSuccess }
func (LoginFailure) Type() string    { return TypeLoginFailure }
func (Logout) Type() string          { return TypeLogout }
func (CleanAuthStatus) Type() string { return TypeCleanAuthStatus }
