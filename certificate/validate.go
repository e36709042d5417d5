package certificate

import "github.com/tenx/certdash/internal/form"

// Validate checks the create-certificate form. It returns form.Errors on
// failure.
func (r CreateRequest) Validate() error {
	var v form.Validator
	v.Positive("user_id", r.UserID)
	v.Positive("challenge_id", r.ChallengeID)
	v.Required("certificate_name", r.CertificateName)
	if r.Score != nil {
		v.NonNegative("score", *r.Score)
	}
	return v.Err()
}
