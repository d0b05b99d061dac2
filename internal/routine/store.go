package routine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Store and Engine.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// canceller is the seam through which the store tells the engine to
// stop an in-flight run before a routine is deleted. The engine
// implements it.
type canceller interface {
	// CancelAndWait cancels any active run for the routine and blocks
	// until it reaches a terminal state. A no-op if nothing is running.
	CancelAndWait(routineID string)
}

// Store owns the canonical routine records. It wraps a Repository with
// an in-memory cache for fast lookups and is the single source of truth
// the scheduler and engine read from.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating CRUD operations. Every mutating call persists
// before returning success, so a crash immediately after a successful
// call cannot lose the change.
//
// All public methods are thread-safe. Reads return deep copies, so an
// in-flight execution is unaffected by concurrent edits; edits apply to
// the next execution only.
type Store struct {
	repo    Repository
	cache   map[string]*Routine
	cacheMu sync.RWMutex
	logger  Logger

	engine   canceller
	engineMu sync.RWMutex
}

// NewStore creates a new routine store backed by the given repository.
func NewStore(repo Repository) *Store {
	return &Store{
		repo:   repo,
		cache:  make(map[string]*Routine),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// SetCanceller wires the execution engine in so Delete can cancel
// in-flight runs. Must be called before Delete is used with an engine
// running; without it, Delete assumes nothing is executing.
func (s *Store) SetCanceller(c canceller) {
	s.engineMu.Lock()
	s.engine = c
	s.engineMu.Unlock()
}

// RefreshCache reloads all routines from the repository into the cache.
// This should be called on application startup.
func (s *Store) RefreshCache(ctx context.Context) error {
	routines, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading routines: %w", err)
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache = make(map[string]*Routine, len(routines))
	for i := range routines {
		r := routines[i]
		s.cache[r.ID] = r.DeepCopy()
	}

	s.logger.Info("routine cache refreshed", "count", len(routines))
	return nil
}

// Get retrieves a routine by ID.
// The returned routine is a deep copy; callers can safely modify it.
func (s *Store) Get(_ context.Context, id string) (*Routine, error) {
	s.cacheMu.RLock()
	cached, ok := s.cache[id]
	s.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}
	return nil, ErrNotFound
}

// List retrieves all routines from the cache as deep copies, in
// insertion order (creation time, ties broken by ID).
func (s *Store) List(_ context.Context) ([]Routine, error) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	routines := make([]Routine, 0, len(s.cache))
	for _, r := range s.cache {
		routines = append(routines, *r.DeepCopy())
	}
	sort.Slice(routines, func(i, j int) bool {
		if !routines[i].CreatedAt.Equal(routines[j].CreatedAt) {
			return routines[i].CreatedAt.Before(routines[j].CreatedAt)
		}
		return routines[i].ID < routines[j].ID
	})
	return routines, nil
}

// Create validates, persists, and caches a new routine.
// Use NewRoutine to construct the record with defaults applied.
func (s *Store) Create(ctx context.Context, routine *Routine) error {
	if routine.ID == "" {
		routine.ID = GenerateID()
	}
	for i := range routine.Actions {
		if routine.Actions[i].ID == "" {
			routine.Actions[i].ID = GenerateID()
		}
	}

	if err := ValidateRoutine(routine); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, routine); err != nil {
		return err
	}

	s.cacheMu.Lock()
	s.cache[routine.ID] = routine.DeepCopy()
	s.cacheMu.Unlock()

	s.logger.Info("routine created", "id", routine.ID, "name", routine.Name)
	return nil
}

// Update validates, persists, and updates the cached routine.
// Returns ErrNotFound if the ID is unknown. The ID itself cannot change.
func (s *Store) Update(ctx context.Context, routine *Routine) error {
	for i := range routine.Actions {
		if routine.Actions[i].ID == "" {
			routine.Actions[i].ID = GenerateID()
		}
	}

	if err := ValidateRoutine(routine); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, routine); err != nil {
		return err
	}

	s.cacheMu.Lock()
	s.cache[routine.ID] = routine.DeepCopy()
	s.cacheMu.Unlock()

	s.logger.Info("routine updated", "id", routine.ID, "name", routine.Name)
	return nil
}

// Delete removes a routine from persistence and cache.
//
// Any in-flight execution for the routine is cancelled and waited on
// before the delete proceeds, so a deletion never leaves a dangling
// run referencing a removed ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.engineMu.RLock()
	engine := s.engine
	s.engineMu.RUnlock()
	if engine != nil {
		engine.CancelAndWait(id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.cacheMu.Lock()
	delete(s.cache, id)
	s.cacheMu.Unlock()

	s.logger.Info("routine deleted", "id", id)
	return nil
}

// MarkFired records that a routine's trigger fired automatically at the
// given instant, persisting before the execution launches.
func (s *Store) MarkFired(ctx context.Context, id string, firedAt time.Time) error {
	if err := s.repo.MarkFired(ctx, id, firedAt); err != nil {
		return err
	}

	s.cacheMu.Lock()
	if cached, ok := s.cache[id]; ok {
		fired := firedAt.UTC()
		cached.LastFired = &fired
	}
	s.cacheMu.Unlock()

	return nil
}

// RecordOutcome updates a routine's statistics after a terminal run:
// last executed timestamp and a +1 on the execution counter, regardless
// of outcome.
func (s *Store) RecordOutcome(ctx context.Context, id string, executedAt time.Time) error {
	if err := s.repo.RecordOutcome(ctx, id, executedAt); err != nil {
		return err
	}

	s.cacheMu.Lock()
	if cached, ok := s.cache[id]; ok {
		executed := executedAt.UTC()
		cached.LastExecuted = &executed
		cached.ExecutionCount++
	}
	s.cacheMu.Unlock()

	return nil
}

// Count returns the number of cached routines.
func (s *Store) Count() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return len(s.cache)
}
