package auth

import "github.com/tenx/certdash/internal/form"

// MinPasswordLength is the shortest password the login form accepts.
const MinPasswordLength = 4

// ValidateLogin checks the login form fields. It returns form.Errors on
// failure.
func ValidateLogin(username string, password []byte) error {
	var v form.Validator
	v.Required("username", username)
	if v.Required("password", string(password)) {
		v.MinLength("password", string(password), MinPasswordLength)
	}
	return v.Err()
}
