package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"github.com/tenx/certdash/api"
	"github.com/tenx/certdash/config"
	"github.com/tenx/certdash/dashboard"
	"github.com/tenx/certdash/events"
	"github.com/tenx/certdash/intent"
	"github.com/tenx/certdash/saga"
	"github.com/tenx/certdash/storage"
	bboltstorage "github.com/tenx/certdash/storage/bbolt"
	"github.com/tenx/certdash/storage/memory"
	redisstorage "github.com/tenx/certdash/storage/redis"
	"github.com/tenx/certdash/store"
	"github.com/tenx/certdash/transport"
	"github.com/tenx/certdash/wallet"
)

// runtime is the object graph behind every command: configuration, the
// persisted store, the API coordinator and the event journal.
type runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	repo        storage.Repository
	persister   *store.Persister
	store       *store.Store
	coordinator *saga.Coordinator
	bus         *events.Bus
	journal     *events.Journal
	view        dashboard.Options

	closers []func() error
}

func openRuntime(cmd *cobra.Command) (_ *runtime, err error) {
	ctx := cmd.Context()
	cfg, err := config.Load(configFlags, nil)
	if err != nil {
		return nil, err
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})),
		view: dashboard.Options{
			Locale:         dashboard.ParseLocale(cfg.Locale),
			ContentGateway: cfg.ContentGateway,
		},
	}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	if err := rt.openStorage(ctx); err != nil {
		return nil, err
	}

	slices := []store.Slice{store.SliceAuth}
	if cfg.PersistCertificates {
		slices = append(slices, store.SliceCertificates)
	}
	persistOpts := []store.PersisterOption{store.PersistSlices(slices...), store.PersistLogger(rt.logger)}
	if cfg.StatePassphrase != "" {
		persistOpts = append(persistOpts, store.PersistPassphrase([]byte(cfg.StatePassphrase)))
	}
	rt.persister = store.NewPersister(rt.repo, persistOpts...)

	rt.store = store.New(
		store.WithInitialState(rt.persister.Rehydrate(ctx)),
		store.WithLogger(rt.logger),
	)
	rt.store.AddListener(rt.persister.Listener())

	rt.journal = events.NewJournal(rt.bus.Publisher, events.WithLogger(rt.logger))
	rt.store.AddListener(rt.journal.Listener())

	tc, err := transport.New(cfg.APIURL,
		transport.WithTimeout(cfg.Timeout),
		transport.WithCredentials(rt.store),
		transport.WithLogger(rt.logger),
		transport.WithUserAgent("certdash/"+Version),
	)
	if err != nil {
		return nil, err
	}

	sagaOpts := []saga.Option{
		saga.WithLogger(rt.logger),
		saga.WithFailureAlert(0, 0, func(ev saga.AlertEvent) {
			rt.logger.Warn("repeated request failures",
				"family", ev.Family, "count", ev.Count, "last_error", ev.Message)
		}),
	}
	w, err := rt.openWallet(ctx)
	if err != nil {
		return nil, err
	}
	if w != nil {
		sagaOpts = append(sagaOpts, saga.WithWallet(w))
	}
	rt.coordinator = saga.New(rt.store, api.New(tc), sagaOpts...)
	rt.coordinator.Start(ctx)
	return rt, nil
}

// openStorage selects the state repository and the journal bus. A redis URL
// backs both unless state is ephemeral, in which case redis carries only
// the journal.
func (rt *runtime) openStorage(ctx context.Context) error {
	cfg := rt.cfg
	if cfg.RedisURL != "" {
		rs, err := redisstorage.NewRepositoryFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, rs.Close)
		bus, err := events.NewRedis(rs.Client(), "")
		if err != nil {
			return err
		}
		rt.bus = bus
		if !cfg.Ephemeral {
			rt.repo = rs
		}
	} else {
		rt.bus = events.NewInProcess()
	}

	switch {
	case rt.repo != nil:
	case cfg.Ephemeral:
		rt.repo = memory.NewRepository()
		rt.closers = append(rt.closers, rt.repo.Close)
	default:
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		repo, err := bboltstorage.NewRepositoryFromFile(cfg.StatePath(), &bbolt.Options{Timeout: 2 * time.Second})
		if err != nil {
			return fmt.Errorf("failed to open state storage: %w", err)
		}
		rt.repo = repo
		rt.closers = append(rt.closers, repo.Close)
	}
	return nil
}

func (rt *runtime) openWallet(ctx context.Context) (wallet.Wallet, error) {
	if rt.cfg.ChainRPC == "" || rt.cfg.WalletKey == "" {
		return nil, nil
	}
	key, err := wallet.ParseKey(rt.cfg.WalletKey)
	if err != nil {
		return nil, err
	}
	client, err := ethclient.DialContext(ctx, rt.cfg.ChainRPC)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain rpc: %w", err)
	}
	rt.closers = append(rt.closers, func() error {
		client.Close()
		return nil
	})
	return wallet.NewEthereum(client, key, walletOptions(rt.cfg, rt.logger)...), nil
}

func walletOptions(cfg config.Config, logger *slog.Logger) []wallet.Option {
	opts := []wallet.Option{wallet.WithLogger(logger)}
	if cfg.AssetRegistry != "" {
		opts = append(opts, wallet.WithRegistry(common.HexToAddress(cfg.AssetRegistry)))
	}
	return opts
}

// Close waits for in-flight workers and releases every resource.
func (rt *runtime) Close() error {
	if rt.coordinator != nil {
		rt.coordinator.Wait()
	}
	var errs []error
	if rt.bus != nil {
		errs = append(errs, rt.bus.Close())
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	return errors.Join(errs...)
}

// dispatch sends a and waits until done holds for the resulting state.
func (rt *runtime) dispatch(ctx context.Context, a intent.Action, done func(store.State) bool) (store.State, error) {
	rt.store.Dispatch(a)
	st, err := rt.store.WaitFor(ctx, done)
	if err != nil {
		return st, fmt.Errorf("waiting for %s: %w", a.Type(), err)
	}
	return st, nil
}

// check runs the client-side validation and role gating for a.
func (rt *runtime) check(a intent.Action) error {
	_, err := dashboard.Check(rt.store.State(), a)
	return err
}
