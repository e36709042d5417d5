package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tenx/certdash/auth"
	"github.com/tenx/certdash/certificate"
	"github.com/tenx/certdash/intent"
	"github.com/tenx/certdash/internal/cryptoutil"
	"github.com/tenx/certdash/storage"
)

const (
	// PersistNamespace is the storage namespace of persisted state.
	PersistNamespace = "persist"
	// PersistKey is the record holding persisted state.
	PersistKey = "root"

	saltKey      = "salt"
	saltSize     = 16
	writeTimeout = 5 * time.Second
)

var persistAAD = cryptoutil.RecordAAD(PersistNamespace, PersistKey, 1)

// Slice names a persistable part of State.
type Slice string

const (
	SliceAuth         Slice = "auth"
	SliceCertificates Slice = "certificates"
)

// persisted is the stored form. Transient request flags are never written.
type persisted struct {
	Auth         *persistedAuth         `json:"auth,omitempty"`
	Certificates *persistedCertificates `json:"certificates,omitempty"`
}

type persistedAuth struct {
	Session *auth.Session `json:"user"`
}

type persistedCertificates struct {
	Certificates []certificate.Certificate `json:"certificates"`
	Selected     *certificate.Certificate  `json:"certificate,omitempty"`
}

// Persister mirrors whitelisted slices to a storage.Repository and restores
// them at startup.
type Persister struct {
	repo       storage.Repository
	slices     map[Slice]bool
	passphrase []byte
	logger     *slog.Logger

	mu   sync.Mutex
	key  []byte
	last []byte
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// PersistSlices replaces the whitelist. The default is auth only.
func PersistSlices(slices ...Slice) PersisterOption {
	return func(p *Persister) {
		p.slices = make(map[Slice]bool, len(slices))
		for _, s := range slices {
			p.slices[s] = true
		}
	}
}

// PersistPassphrase seals stored state with a key derived from passphrase.
func PersistPassphrase(passphrase []byte) PersisterOption {
	return func(p *Persister) {
		p.passphrase = bytes.Clone(passphrase)
	}
}

// PersistLogger sets the persister's logger.
func PersistLogger(logger *slog.Logger) PersisterOption {
	return func(p *Persister) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPersister creates a Persister over repo.
func NewPersister(repo storage.Repository, opts ...PersisterOption) *Persister {
	p := &Persister{
		repo:   repo,
		slices: map[Slice]bool{SliceAuth: true},
		logger: slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "persist")
	return p
}

// Rehydrate loads the persisted state. Any failure, including a missing
// record, a corrupt payload or a wrong passphrase, logs a warning and
// yields the default state.
func (p *Persister) Rehydrate(ctx context.Context) State {
	st, err := p.Load(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			p.logger.Warn("rehydrate failed, starting from defaults", "error", err)
		}
		return State{}
	}
	return st
}

// Load reads the persisted state. Unlike Rehydrate it reports failures.
func (p *Persister) Load(ctx context.Context) (State, error) {
	env, err := p.repo.Get(ctx, PersistNamespace, PersistKey)
	if err != nil {
		return State{}, err
	}
	var key []byte
	if env.Scheme == storage.SchemeAES256GCM {
		if key, err = p.recordKey(ctx, false); err != nil {
			return State{}, err
		}
	}
	plaintext, err := storage.OpenRecord(key, env, persistAAD)
	if err != nil {
		return State{}, fmt.Errorf("opening persisted state: %w", err)
	}
	var rec persisted
	if err := json.Unmarshal(plaintext, &rec); err != nil {
		return State{}, fmt.Errorf("decoding persisted state: %w", err)
	}

	p.mu.Lock()
	p.last = plaintext
	p.mu.Unlock()

	var st State
	if rec.Auth != nil && p.slices[SliceAuth] {
		st.Auth.Session = rec.Auth.Session
	}
	if rec.Certificates != nil && p.slices[SliceCertificates] {
		st.Certificates.Certificates = rec.Certificates.Certificates
		st.Certificates.Selected = rec.Certificates.Selected
	}
	return st, nil
}

// Save writes the whitelisted slices of st, skipping the write when they
// are unchanged since the last save.
func (p *Persister) Save(ctx context.Context, st State) error {
	var rec persisted
	if p.slices[SliceAuth] {
		rec.Auth = &persistedAuth{Session: st.Auth.Session}
	}
	if p.slices[SliceCertificates] {
		rec.Certificates = &persistedCertificates{
			Certificates: st.Certificates.Certificates,
			Selected:     st.Certificates.Selected,
		}
	}
	plaintext, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding persisted state: %w", err)
	}

	p.mu.Lock()
	unchanged := bytes.Equal(p.last, plaintext)
	p.mu.Unlock()
	if unchanged {
		return nil
	}

	env := storage.RawRecord(plaintext)
	if len(p.passphrase) > 0 {
		key, err := p.recordKey(ctx, true)
		if err != nil {
			return err
		}
		if env, err = storage.SealRecord(key, plaintext, persistAAD); err != nil {
			return fmt.Errorf("sealing persisted state: %w", err)
		}
	}
	if err := p.repo.Put(ctx, PersistNamespace, PersistKey, env); err != nil {
		return fmt.Errorf("writing persisted state: %w", err)
	}

	p.mu.Lock()
	p.last = plaintext
	p.mu.Unlock()
	return nil
}

// Reset deletes the persisted state and its salt.
func (p *Persister) Reset(ctx context.Context) error {
	if err := p.repo.Clear(ctx, PersistNamespace); err != nil {
		return fmt.Errorf("deleting persisted state: %w", err)
	}
	p.mu.Lock()
	p.key = nil
	p.last = nil
	p.mu.Unlock()
	return nil
}

// Listener returns a store Listener that saves after every dispatch.
func (p *Persister) Listener() Listener {
	return func(a intent.Action, st State) {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := p.Save(ctx, st); err != nil {
			p.logger.Warn("persist failed", "type", a.Type(), "error", err)
		}
	}
}

// recordKey derives the sealing key from the passphrase and the stored salt.
// When create is set a missing salt is generated and stored.
func (p *Persister) recordKey(ctx context.Context, create bool) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.key != nil {
		return p.key, nil
	}
	if len(p.passphrase) == 0 {
		return nil, errors.New("persisted state is sealed but no passphrase is configured")
	}

	var salt []byte
	env, err := p.repo.Get(ctx, PersistNamespace, saltKey)
	switch {
	case err == nil:
		if salt, err = storage.OpenRecord(nil, env, nil); err != nil {
			return nil, fmt.Errorf("reading salt: %w", err)
		}
	case errors.Is(err, storage.ErrNotFound) && create:
		if salt, err = cryptoutil.Random(saltSize); err != nil {
			return nil, err
		}
		if err := p.repo.Put(ctx, PersistNamespace, saltKey, storage.RawRecord(salt)); err != nil {
			return nil, fmt.Errorf("writing salt: %w", err)
		}
	default:
		return nil, fmt.Errorf("reading salt: %w", err)
	}

	key, err := cryptoutil.DeriveKey(p.passphrase, salt, cryptoutil.DefaultKDFParams())
	if err != nil {
		return nil, err
	}
	p.key = key
	return key, nil
}
