// Package service wires the rating engines, stores and worker pool into the
// operations the HTTP API and the scheduler call.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/okian/gridrank/internal/adapters/cache"
	eventqueue "github.com/okian/gridrank/internal/adapters/mq/queue"
	workerpool "github.com/okian/gridrank/internal/adapters/mq/worker"
	"github.com/okian/gridrank/internal/adapters/repository"
	"github.com/okian/gridrank/internal/domain/dedupe"
	"github.com/okian/gridrank/internal/domain/elo"
	"github.com/okian/gridrank/internal/domain/model"
	"github.com/okian/gridrank/internal/domain/types"
	"github.com/okian/gridrank/pkg/logger"
	"github.com/okian/gridrank/pkg/metrics"
)

// Service runs metrics updates and answers leaderboard queries.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	cache   cache.Cache
	deduper dedupe.Deduper
	queue   *eventqueue.InMemoryQueue
	pool    *workerpool.Pool
	engine  *elo.Engine
	teams   *repository.RankIndex
	coaches *repository.RankIndex

	// runMu serializes metrics runs and season resets.
	runMu   sync.Mutex
	lastRun *RunReport

	// Configuration
	workerCount        int
	queueSize          int
	dedupeSize         int
	movInfluence       float64
	regularSeasonWeeks int
	currentSeason      int
	now                func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the task queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the per-run game idempotency cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCache sets the leaderboard cache. The default caches nothing.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithMoVInfluence sets the wPN margin of victory weight. Zero disables it.
func WithMoVInfluence(influence float64) Option {
	return func(s *Service) {
		if influence >= 0 {
			s.movInfluence = influence
		}
	}
}

// WithRegularSeasonWeeks sets the last week counted in standings.
func WithRegularSeasonWeeks(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.regularSeasonWeeks = n
		}
	}
}

// WithCurrentSeason sets the season used when a caller names none.
func WithCurrentSeason(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.currentSeason = n
		}
	}
}

// WithClock overrides the time source stamped on snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEngine replaces the Elo engine.
func WithEngine(e *elo.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// New constructs a Service over store with default configuration.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:              store,
		cache:              cache.Noop{},
		engine:             elo.NewEngine(),
		teams:              repository.NewRankIndex(string(model.KindTeam)),
		coaches:            repository.NewRankIndex(string(model.KindCoach)),
		workerCount:        runtime.NumCPU(),
		queueSize:          10_000,
		dedupeSize:         50_000,
		movInfluence:       0.25,
		regularSeasonWeeks: 13,
		currentSeason:      1,
		now:                time.Now,
		logger:             logger.Get().Named("service"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start creates the worker pool and loads the rank indexes from the store.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting metrics service...")

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.queue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.queue)
	s.pool.Start(ctx)

	if err := s.rebuildIndexes(ctx); err != nil {
		_ = s.pool.Shutdown(ctx)
		return err
	}

	s.started = true
	s.logger.Info(ctx, "metrics service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("currentSeason", s.currentSeason),
	)

	return nil
}

// Stop shuts the worker pool down. A run in progress sees its tasks fail.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(ctx, "stopping metrics service...")

	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "metrics service stopped")
}

// CurrentSeason returns the season used when a caller names none.
func (s *Service) CurrentSeason() int {
	return s.currentSeason
}

// running returns the pool if the service is started.
func (s *Service) running() (*workerpool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.pool, nil
}

// index returns the rank index for kind.
func (s *Service) index(kind model.EntityKind) (*repository.RankIndex, error) {
	switch kind {
	case model.KindTeam:
		return s.teams, nil
	case model.KindCoach:
		return s.coaches, nil
	}
	return nil, ErrUnknownKind
}

// rebuildIndexes reloads both rank indexes from every entity's latest snapshot.
func (s *Service) rebuildIndexes(ctx context.Context) error {
	teams, err := s.store.Teams(ctx)
	if err != nil {
		return err
	}
	coaches, err := s.store.Coaches(ctx)
	if err != nil {
		return err
	}
	names := map[model.EntityKind]map[string]string{
		model.KindTeam:  make(map[string]string, len(teams)),
		model.KindCoach: make(map[string]string, len(coaches)),
	}
	for _, t := range teams {
		names[model.KindTeam][t.ID] = t.Name
	}
	for _, c := range coaches {
		names[model.KindCoach][c.ID] = c.Username
	}

	for _, kind := range []model.EntityKind{model.KindTeam, model.KindCoach} {
		ids, err := s.store.Refs(ctx, kind)
		if err != nil {
			return err
		}
		entries := make([]types.Entry, 0, len(ids))
		for _, id := range ids {
			snap, err := s.store.Latest(ctx, model.EntityRef{Kind: kind, ID: id})
			if err != nil {
				return err
			}
			name := names[kind][id]
			if name == "" {
				name = id
			}
			entries = append(entries, types.Entry{ID: id, Name: name, Elo: snap.NewRating})
		}
		idx, _ := s.index(kind)
		idx.Reset(entries)
	}
	return nil
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"dedupeSize":    s.dedupeSize,
		"currentSeason": s.currentSeason,
		"teams":         s.teams.Count(),
		"coaches":       s.coaches.Count(),
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["dedupeEntries"] = s.deduper.Size()
		metrics.UpdateQueueSize(queueLen)
	}
	if s.lastRun != nil {
		stats["lastRun"] = *s.lastRun
	}

	return stats
}
