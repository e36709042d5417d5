package storage

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/tenx/certdash/internal/cryptoutil"
)

const (
	// SchemeRaw stores the payload unencrypted in Ciphertext.
	SchemeRaw = "raw"
	// SchemeAES256GCM stores an AES-256-GCM sealed payload.
	SchemeAES256GCM = "aes256gcm"
)

// Envelope is a stored record, either raw or AES-256-GCM sealed.
type Envelope struct {
	Ver        int    `json:"ver"`
	Scheme     string `json:"scheme"`
	Nonce      []byte `json:"nonce,omitempty"`
	Ciphertext []byte `json:"ciphertext"`
	// Written is set by the repository when the record is stored.
	Written time.Time `json:"written,omitzero"`
}

// RawRecord wraps plaintext into an unsealed Envelope.
func RawRecord(plaintext []byte) *Envelope {
	return &Envelope{
		Ver:        1,
		Scheme:     SchemeRaw,
		Ciphertext: bytes.Clone(plaintext),
	}
}

// SealRecord encrypts plaintext into an Envelope using the given record key and AAD.
func SealRecord(recordKey, plaintext, aad []byte) (*Envelope, error) {
	nonce, ciphertext, err := cryptoutil.Seal(recordKey, plaintext, aad)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Ver:        1,
		Scheme:     SchemeAES256GCM,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}, nil
}

// OpenRecord returns the plaintext of an Envelope. Raw envelopes ignore the
// key and AAD; sealed envelopes are decrypted with them.
func OpenRecord(recordKey []byte, envelope *Envelope, aad []byte) ([]byte, error) {
	if envelope == nil {
		return nil, errors.New("nil envelope")
	}
	if envelope.Ver != 1 {
		return nil, fmt.Errorf("unsupported envelope version: %d", envelope.Ver)
	}
	switch envelope.Scheme {
	case SchemeRaw:
		return bytes.Clone(envelope.Ciphertext), nil
	case SchemeAES256GCM:
	default:
		return nil, fmt.Errorf("unsupported envelope scheme: %s", envelope.Scheme)
	}

	return cryptoutil.Open(recordKey, envelope.Nonce, envelope.Ciphertext, aad)
}
