package intent

import "github.com/tenx/certdash/certificate"

const (
	TypeFetchAll        = "certificates/FetchAllCertificates"
	TypeFetchAllSuccess = "certificates/FetchAllCertificatesSuccess"
	TypeFetchAllFailure = "certificates/FetchAllCertificatesFailure"
	TypeCreate          = "certificates/CreateCertificate"
	TypeCreateSuccess   = "certificates/CreateCertificateSuccess"
	TypeCreateFailure   = "certificates/CreateCertificateFailure"
	TypeUpdate          = "certificates/UpdateCertificate"
	TypeUpdateSuccess   = "certificates/UpdateCertificateSuccess"
	TypeUpdateFailure   = "certificates/UpdateCertificateFailure"
	TypeCleanUp         = "certificates/CleanUp"
	TypeCleanUpStatus   = "certificates/CleanUpStatus"
)

// FetchAll reloads the certificate list.
type FetchAll struct{}

// FetchAllSuccess carries the server's list.
type FetchAllSuccess struct {
	Certificates []certificate.Certificate `json:"certificates"`
}

// FetchAllFailure carries the failure message.
type FetchAllFailure struct {
	Message string `json:"message"`
}

// Create issues a certificate.
type Create struct {
	Request certificate.CreateRequest `json:"request"`
}

// CreateSuccess carries the created certificate.
type CreateSuccess struct {
	Certificate certificate.Certificate `json:"certificate"`
}

// CreateFailure carries the failure message.
type CreateFailure struct {
	Message string `json:"message"`
}

// Update runs the update sub-operation Path on certificate ID.
type Update struct {
	Path     certificate.UpdatePath `json:"path"`
	ID       int                    `json:"id"`
	Password Secret                 `json:"-"`
}

// UpdateSuccess carries the updated certificate.
type UpdateSuccess struct {
	Certificate certificate.Certificate `json:"certificate"`
}

// UpdateFailure carries the failure message.
type UpdateFailure struct {
	Message string `json:"message"`
}

// CleanUp resets the whole certificate slice.
type CleanUp struct{}

// CleanUpStatus resets the certificate slice's transient flags.
type CleanUpStatus struct{}

func (FetchAll) Type() string        { return TypeFetchAll }
func (FetchAllSuccess) Type() string { return TypeFetchAllSuccess }
func (FetchAllFailure) Type() string { return TypeFetchAllFailure }
func (Create) Type() string          { return TypeCreate }
func (CreateSuccess) Type() string   { return TypeCreateSuccess }
func (CreateFailure) Type() string   { return TypeCreateFailure }
func (Update) Type() string          { return TypeUpdate }
func (UpdateSuccess) Type() string   { return TypeUpdateSuccess }
func (UpdateFailure) Type() string   { return TypeUpdateFailure }
func (CleanUp) Type() string         { return TypeCleanUp }
func (CleanUpStatus) Type() string   { return TypeCleanUpStatus }
