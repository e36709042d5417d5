package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrRejected is the cause of a failure signaled by isSuccess=false.
	ErrRejected = errors.New("request rejected by server")
	// ErrStatus is the cause of a non-2xx response without a usable envelope.
	ErrStatus = errors.New("unexpected http status")
	// ErrMalformedEnvelope is returned when a 2xx body is not an envelope.
	ErrMalformedEnvelope = errors.New("malformed response envelope")
	// ErrInvalidBaseURL is returned by New for unusable base URLs.
	ErrInvalidBaseURL = errors.New("invalid base url")
)

// TransportError is a failed call: either the network failed or the
// envelope signaled failure. Message holds the server-provided error text
// and is empty when the server supplied none.
type TransportError struct {
	Method   string
	Resource string
	Status   int
	Message  string
	Err      error
}

func (e *TransportError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s %s: %s", e.Method, e.Resource, e.Message)
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.Resource, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Resource, e.Err)
	}
	return fmt.Sprintf("%s %s: request failed", e.Method, e.Resource)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Message returns the server-provided message carried by err, or "".
func Message(err error) string {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Message
	}
	return ""
}
