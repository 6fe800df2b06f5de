package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/go-go-golems/palaver/pkg/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultSaveTimeout = 5 * time.Second

// Snapshotter writes the whole state to a backend after every commit.
// Failures are logged and remembered; the in-memory state stays authoritative.
type Snapshotter struct {
	backend Backend
	key     string
	timeout time.Duration

	mu      sync.Mutex
	lastErr error
	saves   int
	failed  int
}

type SnapshotterOption func(*Snapshotter)

func WithKey(key string) SnapshotterOption {
	return func(s *Snapshotter) {
		s.key = key
	}
}

func WithSaveTimeout(timeout time.Duration) SnapshotterOption {
	return func(s *Snapshotter) {
		s.timeout = timeout
	}
}

func NewSnapshotter(backend Backend, options ...SnapshotterOption) *Snapshotter {
	ret := &Snapshotter{
		backend: backend,
		key:     StateKey,
		timeout: DefaultSaveTimeout,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Attach subscribes the snapshotter to st and returns the unsubscribe function.
func (s *Snapshotter) Attach(st *store.Store) func() {
	return st.Subscribe(s.Save)
}

// Save persists state. It has the store.Subscriber signature.
func (s *Snapshotter) Save(state *store.State) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := s.save(ctx, state)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.failed++
		s.lastErr = err
		log.Error().Err(err).Str("key", s.key).Int64("version", state.Version).Msg("could not persist state")
		return
	}
	s.saves++
	s.lastErr = nil
}

func (s *Snapshotter) save(ctx context.Context, state *store.State) error {
	b, err := EncodeState(state)
	if err != nil {
		return err
	}
	return errors.Wrap(s.backend.Save(ctx, s.key, b), "could not save state")
}

// LastError is the error of the most recent save, nil if it succeeded.
func (s *Snapshotter) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Stats returns the number of successful and failed saves.
func (s *Snapshotter) Stats() (saves int, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves, s.failed
}

// Hydrate loads the persisted state under key. A missing or unreadable
// blob falls back to the initial state; only the latter is reported.
func Hydrate(ctx context.Context, backend Backend, key string) (*store.State, error) {
	b, err := backend.Load(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Debug().Str("key", key).Msg("no persisted state, starting fresh")
			return store.InitialState(), nil
		}
		return store.InitialState(), errors.Wrap(err, "could not load state")
	}
	s, err := DecodeState(b)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("discarding unreadable persisted state")
		return store.InitialState(), err
	}
	return s, nil
}
