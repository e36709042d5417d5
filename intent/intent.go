// Package intent defines the typed intents dispatched to the store and the
// outcome intents produced for them.
package intent

import "github.com/awnumar/memguard"

// Action is anything the store can reduce. Type returns a stable name of the
// form "<slice>/<Name>".
type Action interface {
	Type() string
}

// Secret is a password carried inside an intent. It lives in an encrypted
// memguard enclave and is never serialized.
type Secret struct {
	enclave *memguard.Enclave
}

// NewSecret seals b into a Secret. b is wiped.
func NewSecret(b []byte) Secret {
	if len(b) == 0 {
		return Secret{}
	}
	return Secret{enclave: memguard.NewEnclave(b)}
}

// Empty reports whether the secret holds no bytes.
func (s Secret) Empty() bool { return s.enclave == nil }

// Use opens the secret for the duration of fn and wipes the plaintext
// afterward. fn must not retain the slice.
func (s Secret) Use(fn func([]byte) error) error {
	if s.enclave == nil {
		return fn(nil)
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return err
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// MarshalJSON keeps the secret out of every encoding.
func (Secret) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Len returns the secret's length in bytes.
func (s Secret) Len() int {
	if s.enclave == nil {
		return 0
	}
	return s.enclave.Size()
}
