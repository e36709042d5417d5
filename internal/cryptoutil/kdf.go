package cryptoutil

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// KDFParams tunes argon2id.
type KDFParams struct {
	Time      uint32 `json:"time"`
	MemoryKiB uint32 `json:"memory"`
	Threads   uint8  `json:"threads"`
}

// DefaultKDFParams returns m=64 MiB, t=1, p=4.
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 1, MemoryKiB: 64 * 1024, Threads: 4}
}

// DeriveKey stretches passphrase into a KeySize key.
func DeriveKey(passphrase, salt []byte, p KDFParams) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("deriving key: empty passphrase")
	}
	if len(salt) < 8 {
		return nil, errors.New("deriving key: salt must be at least 8 bytes")
	}
	if p.Time == 0 || p.MemoryKiB == 0 || p.Threads == 0 {
		return nil, fmt.Errorf("deriving key: invalid parameters %+v", p)
	}
	return argon2.IDKey(passphrase, salt, p.Time, p.MemoryKiB, p.Threads, KeySize), nil
}
