// Package store is the observable client state container. All state
// changes go through Dispatch, which runs the pure reducers serially and
// then notifies listeners and subscribers.
package store

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/tenx/certdash/intent"
)

// Listener observes every dispatched intent together with the state it
// produced. Listeners run while the dispatch lock is held, in registration
// order; they must not call Dispatch synchronously and must treat the state
// as read-only.
type Listener func(intent.Action, State)

// Store holds the current State.
type Store struct {
	// dispatchMu serializes reduction and listener calls.
	dispatchMu sync.Mutex

	mu        sync.RWMutex
	state     State
	listeners []Listener

	subMu   sync.Mutex
	subs    map[int]chan State
	nextSub int

	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithInitialState seeds the store, typically from a Persister.
func WithInitialState(s State) Option {
	return func(st *Store) {
		st.state = s.Clone()
	}
}

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(st *Store) {
		if logger != nil {
			st.logger = logger
		}
	}
}

// New creates a Store.
func New(opts ...Option) *Store {
	s := &Store{
		subs:   make(map[int]chan State),
		logger: slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "store")
	return s
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// AddListener registers l for all subsequent dispatches.
func (s *Store) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Dispatch reduces a into the state and notifies observers.
func (s *Store) Dispatch(a intent.Action) {
	s.DispatchIf(nil, a)
}

// DispatchIf dispatches a only if guard reports true. The guard runs under
// the dispatch lock, so no other dispatch can interleave between the check
// and the reduction. It reports whether a was dispatched.
func (s *Store) DispatchIf(guard func() bool, a intent.Action) bool {
	if a == nil {
		return false
	}
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	if guard != nil && !guard() {
		return false
	}

	s.mu.Lock()
	next := Reduce(s.state, a)
	s.state = next
	listeners := s.listeners
	s.mu.Unlock()

	s.logger.Debug("dispatched", "type", a.Type())

	snapshot := next.Clone()
	for _, l := range listeners {
		l(a, snapshot)
	}
	s.notify(snapshot)
	return true
}

// Subscribe returns a channel carrying the latest state after each
// dispatch. Delivery coalesces: a slow reader sees only the newest state.
// The current state is delivered immediately. Call cancel to unsubscribe;
// it closes the channel.
func (s *Store) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.State()
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			close(ch)
			s.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Store) notify(st State) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}

// WaitFor blocks until pred holds for the state, or ctx is done.
func (s *Store) WaitFor(ctx context.Context, pred func(State) bool) (State, error) {
	ch, cancel := s.Subscribe()
	defer cancel()
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return State{}, context.Canceled
			}
			if pred(st) {
				return st, nil
			}
		case <-ctx.Done():
			return s.State(), ctx.Err()
		}
	}
}

// Token returns the bearer token of the active session, or "". It lets the
// store act as the transport's credential source.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Auth.Session == nil {
		return ""
	}
	return s.state.Auth.Session.Token
}
