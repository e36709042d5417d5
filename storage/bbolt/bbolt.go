// Package bbolt provides a BBolt-backed storage repository, the default
// home of persisted client state.
package bbolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/tenx/certdash/storage"
)

// Schema is the layout version written to new databases.
const Schema = "1"

var (
	rootBucket = []byte("certdash")
	metaBucket = []byte("meta")
	schemaKey  = []byte("schema")
)

// ErrSchema is returned when a database was written with a different layout.
var ErrSchema = errors.New("unsupported state database schema")

// Store implements storage.Repository backed by a BBolt database. Namespaces
// are nested buckets under a single root bucket, next to a meta bucket that
// records the layout version.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

var _ storage.Repository = (*Store)(nil)

// NewRepository prepares db for use, writing the schema marker into an empty
// database and rejecting one written with another schema.
func NewRepository(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(rootBucket)
		if err != nil {
			return err
		}
		meta, err := root.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		switch got := meta.Get(schemaKey); {
		case got == nil:
			return meta.Put(schemaKey, []byte(Schema))
		case string(got) != Schema:
			return fmt.Errorf("%w: %q", ErrSchema, got)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// NewRepositoryFromFile opens the database at path. A nil options value uses
// a one second lock timeout, so a second process fails fast instead of
// blocking on the file lock.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	if options == nil {
		options = &bbolt.Options{Timeout: time.Second}
	}
	db, err := bbolt.Open(path, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("opening state database %s: %w", path, err)
	}
	s, err := NewRepository(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// namespace returns the bucket for ns, or nil when it does not exist. The
// meta bucket is never exposed as a namespace.
func namespace(tx *bbolt.Tx, ns string) *bbolt.Bucket {
	if ns == string(metaBucket) {
		return nil
	}
	return tx.Bucket(rootBucket).Bucket([]byte(ns))
}

func notFound(ns, key string) error {
	return fmt.Errorf("%s/%s: %w", ns, key, storage.ErrNotFound)
}

func (s *Store) Put(_ context.Context, ns, key string, envelope *storage.Envelope) error {
	if ns == string(metaBucket) {
		return fmt.Errorf("namespace %q is reserved", ns)
	}
	data, err := json.Marshal(storage.Stamp(envelope, s.now()))
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(rootBucket).CreateBucketIfNotExists([]byte(ns))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

func (s *Store) Get(_ context.Context, ns, key string) (*storage.Envelope, error) {
	var envelope storage.Envelope
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := namespace(tx, ns)
		if b == nil {
			return notFound(ns, key)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return notFound(ns, key)
		}
		return json.Unmarshal(data, &envelope)
	})
	if err != nil {
		return nil, err
	}
	return &envelope, nil
}

func (s *Store) Delete(_ context.Context, ns, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := namespace(tx, ns)
		if b == nil || b.Get([]byte(key)) == nil {
			return notFound(ns, key)
		}
		return b.Delete([]byte(key))
	})
}

func (s *Store) List(_ context.Context, ns string) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := namespace(tx, ns)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

func (s *Store) Clear(_ context.Context, ns string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if namespace(tx, ns) == nil {
			return nil
		}
		return tx.Bucket(rootBucket).DeleteBucket([]byte(ns))
	})
}
