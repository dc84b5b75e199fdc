// Package snapshot layers write-through persistence over the in-memory record
// store. A Backend loads the aggregate once at startup and receives the full
// aggregate after every committed transaction.
package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"admissions/internal/infra/persistence/memory"
	"admissions/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

// Backend is a durable home for the serialized aggregate.
type Backend interface {
	// Load returns the stored aggregate. found is false when nothing has been
	// saved yet; err is non-nil when stored data exists but cannot be decoded.
	Load(ctx context.Context) (state domain.AppState, found bool, err error)
	Save(ctx context.Context, state domain.AppState) error
	Name() string
}

// Options configures a snapshotting store.
type Options struct {
	Logger      zerolog.Logger
	Seed        func(now time.Time) domain.AppState
	Memory      []memory.Option
	OnSaveError func(error)
}

// Option mutates Options.
type Option func(*Options)

// WithLogger sets the logger used for load fallbacks and save failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithSeed overrides the aggregate used when nothing usable is stored.
func WithSeed(seed func(now time.Time) domain.AppState) Option {
	return func(o *Options) {
		if seed != nil {
			o.Seed = seed
		}
	}
}

// WithMemoryOptions forwards options to the wrapped memory store.
func WithMemoryOptions(opts ...memory.Option) Option {
	return func(o *Options) { o.Memory = append(o.Memory, opts...) }
}

// WithSaveErrorHook registers a callback invoked after a failed save.
func WithSaveErrorHook(fn func(error)) Option {
	return func(o *Options) { o.OnSaveError = fn }
}

// Resolve applies opts over the defaults.
func Resolve(opts ...Option) Options {
	o := Options{Logger: zerolog.Nop(), Seed: domain.SeedState}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Store wraps memory.Store and saves the aggregate after each commit.
type Store struct {
	*memory.Store
	backend Backend
	opts    Options
	mu      sync.Mutex
}

// Open hydrates a memory store from backend. Missing state yields the seed;
// undecodable state is logged and also yields the seed. Open never fails on
// load errors so the workflow stays usable.
func Open(ctx context.Context, backend Backend, engine *domain.RulesEngine, opts ...Option) *Store {
	o := Resolve(opts...)
	mem := memory.NewStore(engine, o.Memory...)
	state, found, err := backend.Load(ctx)
	switch {
	case err != nil:
		o.Logger.Warn().Err(err).Str("backend", backend.Name()).Msg("stored admission state unreadable, starting from seed")
		state = o.Seed(mem.NowFunc()())
	case !found:
		o.Logger.Info().Str("backend", backend.Name()).Msg("no stored admission state, starting from seed")
		state = o.Seed(mem.NowFunc()())
	}
	mem.ImportState(state)
	return &Store{Store: mem, backend: backend, opts: o}
}

// RunInTransaction commits through the memory store, then saves. A failed save
// is logged and reported to the hook but never fails the committed mutation.
// The save outlives cancellation of ctx once the commit has happened.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	s.persist(context.WithoutCancel(ctx))
	return res, nil
}

// ImportState replaces the aggregate and saves it.
func (s *Store) ImportState(state domain.AppState) {
	s.Store.ImportState(state)
	s.persist(context.Background())
}

// Backend returns the durable backend.
func (s *Store) Backend() Backend { return s.backend }

func (s *Store) persist(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Save(ctx, s.State()); err != nil {
		s.opts.Logger.Error().Err(err).Str("backend", s.backend.Name()).Msg("persist admission state")
		if s.opts.OnSaveError != nil {
			s.opts.OnSaveError(err)
		}
	}
}
