// Package scheduler triggers metrics runs on a cron expression.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/gridrank/pkg/logger"
)

// DefaultTimeout bounds one scheduled run.
const DefaultTimeout = 10 * time.Minute

// ErrEmptySchedule is returned by New for a blank expression.
var ErrEmptySchedule = errors.New("empty schedule")

// Job is the work run on every tick.
type Job func(ctx context.Context) error

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithTimeout bounds each run.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLocation sets the time zone the expression is read in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// Scheduler runs a Job on a cron schedule. A tick that arrives while the
// previous run is still going is skipped.
type Scheduler struct {
	cron     *cron.Cron
	entry    cron.EntryID
	job      Job
	timeout  time.Duration
	location *time.Location
	log      logger.Logger
}

// New parses spec (standard five-field cron or descriptors like @hourly).
func New(spec string, job Job, opts ...Option) (*Scheduler, error) {
	if spec == "" {
		return nil, ErrEmptySchedule
	}
	s := &Scheduler{
		job:      job,
		timeout:  DefaultTimeout,
		location: time.Local,
		log:      logger.Get().Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	cl := cronLogger{log: s.log}
	s.cron = cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		return nil, fmt.Errorf("scheduler: parse %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.log.Error(ctx, "scheduled run failed", logger.Error(err), logger.Duration("took", time.Since(start)))
		return
	}
	s.log.Info(ctx, "scheduled run finished", logger.Duration("took", time.Since(start)))
}

// Start begins ticking in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info(context.Background(), "scheduler started", logger.Any("next", s.Next()))
}

// Next returns the next planned run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Stop stops ticking and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: stop: %w", ctx.Err())
	}
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug(context.Background(), msg, fields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error(context.Background(), msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(kv []any) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		out = append(out, logger.Any(key, kv[i+1]))
	}
	return out
}
