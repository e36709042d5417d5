// Package saga runs the side effects of dispatched intents. Each trigger
// intent starts a worker that calls the API and dispatches the matching
// outcome intent. Within one family only the most recently started worker
// may apply its outcome; older outcomes are dropped.
package saga

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tenx/certdash/api"
	"github.com/tenx/certdash/auth"
	"github.com/tenx/certdash/certificate"
	"github.com/tenx/certdash/intent"
	"github.com/tenx/certdash/store"
	"github.com/tenx/certdash/transport"
	"github.com/tenx/certdash/wallet"
)

// FallbackMessage is shown when a failure carries no server message.
const FallbackMessage = "Something went wrong! try again"

// Family groups intents whose outcomes supersede each other.
type Family string

const (
	FamilyLogin       Family = "login"
	FamilyFetch       Family = "fetch-certificates"
	FamilyCreate      Family = "create-certificate"
	FamilyUpdate      Family = "update-certificate"
	FamilyCreateAsset Family = "create-asset"
)

// Coordinator listens to the store and runs workers.
type Coordinator struct {
	store  *store.Store
	api    *api.Client
	wallet wallet.Wallet
	logger *slog.Logger
	alerts *failureCollector

	mu     sync.Mutex
	seq    uint64
	latest map[Family]uint64
	ctx    context.Context

	started   atomic.Bool
	wg        sync.WaitGroup
	discarded atomic.Int64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithWallet enables the asset creation family.
func WithWallet(w wallet.Wallet) Option {
	return func(c *Coordinator) {
		c.wallet = w
	}
}

// WithFailureAlert calls fn when threshold failures of one family occur
// within window.
func WithFailureAlert(threshold int, window time.Duration, fn AlertFunc) Option {
	return func(c *Coordinator) {
		c.alerts = newFailureCollector(threshold, window, fn)
	}
}

// New creates a Coordinator for st backed by client.
func New(st *store.Store, client *api.Client, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  st,
		api:    client,
		logger: slog.New(slog.NewJSONHandler(os.Stderr, nil)),
		latest: make(map[Family]uint64),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "saga")
	return c
}

// Start registers the coordinator as a store listener. Workers inherit ctx;
// cancelling it aborts their in-flight requests. Start is a no-op after the
// first call.
func (c *Coordinator) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()
	c.store.AddListener(c.onDispatch)
}

// Run starts the coordinator and blocks until ctx is done and all workers
// have finished.
func (c *Coordinator) Run(ctx context.Context) error {
	c.Start(ctx)
	<-ctx.Done()
	c.Wait()
	return ctx.Err()
}

// Wait blocks until no worker is running.
func (c *Coordinator) Wait() { c.wg.Wait() }

// Discarded returns how many outcomes were dropped as superseded.
func (c *Coordinator) Discarded() int64 { return c.discarded.Load() }

func (c *Coordinator) onDispatch(a intent.Action, _ store.State) {
	switch a := a.(type) {
	case intent.Login:
		c.spawn(FamilyLogin, a, func(ctx context.Context) intent.Action { return c.login(ctx, a) })
	case intent.FetchAll:
		c.spawn(FamilyFetch, a, c.fetchAll)
	case intent.Create:
		c.spawn(FamilyCreate, a, func(ctx context.Context) intent.Action { return c.create(ctx, a) })
	case intent.Update:
		c.spawn(FamilyUpdate, a, func(ctx context.Context) intent.Action { return c.update(ctx, a) })
	case intent.CreateAsset:
		c.spawn(FamilyCreateAsset, a, func(ctx context.Context) intent.Action { return c.createAsset(ctx, a) })
	}
}

// spawn makes a new token the latest of family and runs work in a
// goroutine. It is called under the store's dispatch lock.
func (c *Coordinator) spawn(f Family, trigger intent.Action, work func(context.Context) intent.Action) {
	c.mu.Lock()
	c.seq++
	token := c.seq
	c.latest[f] = token
	ctx := c.ctx
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		start := time.Now()
		outcome := work(ctx)
		applied := c.store.DispatchIf(func() bool { return c.isLatest(f, token) }, outcome)
		if !applied {
			c.discarded.Add(1)
			c.logger.Debug("discarded superseded outcome",
				"family", f,
				"trigger", trigger.Type(),
				"outcome", outcome.Type(),
				"token", token,
			)
			return
		}
		c.logger.Debug("applied outcome",
			"family", f,
			"outcome", outcome.Type(),
			"duration", time.Since(start),
		)
		if msg, failed := failureMessage(outcome); failed {
			c.alerts.record(f, msg)
		}
	}()
}

func (c *Coordinator) isLatest(f Family, token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest[f] == token
}

func (c *Coordinator) login(ctx context.Context, a intent.Login) intent.Action {
	var sess *auth.Session
	err := a.Password.Use(func(pw []byte) error {
		var err error
		sess, err = c.api.Auth.Login(ctx, api.LoginRequest{Username: a.Username, Password: pw})
		return err
	})
	if err != nil {
		c.logger.Info("login failed", "username", a.Username, "error", err)
		return intent.LoginFailure{Message: Message(err)}
	}
	c.logger.Info("login succeeded", "username", sess.Username, "role", sess.Role)
	return intent.LoginSuccess{Session: sess}
}

func (c *Coordinator) fetchAll(ctx context.Context) intent.Action {
	certs, err := c.api.Certificates.List(ctx)
	if err != nil {
		c.logger.Info("fetching certificates failed", "error", err)
		return intent.FetchAllFailure{Message: Message(err)}
	}
	return intent.FetchAllSuccess{Certificates: certs}
}

func (c *Coordinator) create(ctx context.Context, a intent.Create) intent.Action {
	cert, err := c.api.Certificates.Create(ctx, a.Request)
	if err != nil {
		c.logger.Info("creating certificate failed", "error", err)
		return intent.CreateFailure{Message: Message(err)}
	}
	return intent.CreateSuccess{Certificate: cert}
}

func (c *Coordinator) update(ctx context.Context, a intent.Update) intent.Action {
	var cert certificate.Certificate
	err := a.Password.Use(func(pw []byte) error {
		var err error
		cert, err = c.api.Certificates.Update(ctx, a.Path, a.ID, pw)
		return err
	})
	if err != nil {
		c.logger.Info("updating certificate failed", "id", a.ID, "path", a.Path, "error", err)
		return intent.UpdateFailure{Message: Message(err)}
	}
	return intent.UpdateSuccess{Certificate: cert}
}

func (c *Coordinator) createAsset(ctx context.Context, a intent.CreateAsset) intent.Action {
	var (
		rec wallet.Receipt
		err = wallet.ErrNoWallet
	)
	if c.wallet != nil {
		rec, err = c.wallet.CreateAsset(ctx, wallet.AssetRequest{Name: a.Name, URL: a.URL})
	}
	if err != nil {
		c.logger.Info("creating asset failed", "error", err)
		msg := FallbackMessage
		switch {
		case errors.Is(err, wallet.ErrNoWallet):
			msg = "No wallet configured"
		case errors.Is(err, wallet.ErrInvalidAsset):
			msg = "Asset name and URL are required"
		}
		return intent.CreateAssetFailure{Message: msg}
	}
	return intent.CreateAssetSuccess{TxHash: rec.TxHash, AssetURL: rec.AssetURL}
}

// Message is the user-facing text for a failed call: the server-provided
// message when there is one, otherwise FallbackMessage.
func Message(err error) string {
	if msg := transport.Message(err); msg != "" {
		return msg
	}
	return FallbackMessage
}

func failureMessage(a intent.Action) (string, bool) {
	switch a := a.(type) {
	case intent.LoginFailure:
		return a.Message, true
	case intent.FetchAllFailure:
		return a.Message, true
	case intent.CreateFailure:
		return a.Message, true
	case intent.UpdateFailure:
		return a.Message, true
	case intent.CreateAssetFailure:
		return a.Message, true
	}
	return "", false
}
