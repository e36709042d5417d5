// Package memory provides an in-memory storage.Repository, used for
// --ephemeral sessions and tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/tenx/certdash/storage"
)

type namespace map[string]*storage.Envelope

// Repository keeps envelopes in process memory. Nothing survives the
// process; envelopes are copied on the way in and out.
type Repository struct {
	mu     sync.RWMutex
	data   map[string]namespace
	now    func() time.Time
	closed bool
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository returns an empty Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]namespace), now: time.Now}
}

// read runs fn under the read lock unless the repository is closed.
func (r *Repository) read(fn func() error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return storage.ErrClosed
	}
	return fn()
}

// write runs fn under the write lock unless the repository is closed.
func (r *Repository) write(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return storage.ErrClosed
	}
	return fn()
}

func (r *Repository) Put(_ context.Context, ns, key string, envelope *storage.Envelope) error {
	stamped := storage.Stamp(envelope, r.now())
	return r.write(func() error {
		if r.data[ns] == nil {
			r.data[ns] = make(namespace)
		}
		r.data[ns][key] = stamped
		return nil
	})
}

func (r *Repository) Get(_ context.Context, ns, key string) (*storage.Envelope, error) {
	var env *storage.Envelope
	err := r.read(func() error {
		stored, ok := r.data[ns][key]
		if !ok {
			return storage.ErrNotFound
		}
		env = storage.CloneEnvelope(stored)
		return nil
	})
	return env, err
}

func (r *Repository) Delete(_ context.Context, ns, key string) error {
	return r.write(func() error {
		if _, ok := r.data[ns][key]; !ok {
			return storage.ErrNotFound
		}
		delete(r.data[ns], key)
		return nil
	})
}

// List returns the keys of ns in sorted order.
func (r *Repository) List(_ context.Context, ns string) ([]string, error) {
	var keys []string
	err := r.read(func() error {
		keys = slices.Sorted(maps.Keys(r.data[ns]))
		return nil
	})
	return keys, err
}

func (r *Repository) Clear(_ context.Context, ns string) error {
	return r.write(func() error {
		delete(r.data, ns)
		return nil
	})
}

// Close drops all records. Later calls return storage.ErrClosed.
func (r *Repository) Close() error {
	r.mu.Lock()
	r.closed = true
	r.data = nil
	r.mu.Unlock()
	return nil
}
