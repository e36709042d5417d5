// Package storage provides the key-value abstraction used to persist client
// state across runs.
package storage

import (
	"bytes"
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record exists for a namespace/key pair.
	ErrNotFound = errors.New("record not found")
	// ErrClosed is returned by backends that have already been closed.
	ErrClosed = errors.New("repository closed")
)

// Repository stores envelopes addressed by namespace and key. Put stamps the
// stored copy with the write time; the caller's envelope is not modified.
type Repository interface {
	Put(ctx context.Context, namespace, key string, envelope *Envelope) error
	Get(ctx context.Context, namespace, key string) (*Envelope, error)
	Delete(ctx context.Context, namespace, key string) error
	List(ctx context.Context, namespace string) ([]string, error)
	// Clear removes every record in namespace. Clearing an empty namespace
	// is not an error.
	Clear(ctx context.Context, namespace string) error
	Close() error
}

// CloneEnvelope returns a deep copy of env.
func CloneEnvelope(env *Envelope) *Envelope {
	if env == nil {
		return nil
	}
	cp := *env
	cp.Nonce = bytes.Clone(env.Nonce)
	cp.Ciphertext = bytes.Clone(env.Ciphertext)
	return &cp
}

// Stamp returns a copy of env with Written set to at, in UTC and truncated
// to milliseconds so it survives every backend's encoding unchanged.
func Stamp(env *Envelope, at time.Time) *Envelope {
	cp := CloneEnvelope(env)
	if cp != nil {
		cp.Written = at.UTC().Truncate(time.Millisecond)
	}
	return cp
}
