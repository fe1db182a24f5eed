package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/gridrank/internal/adapters/cache"
	"github.com/okian/gridrank/internal/adapters/http/api"
	"github.com/okian/gridrank/internal/adapters/league"
	"github.com/okian/gridrank/internal/adapters/repository"
	"github.com/okian/gridrank/internal/adapters/scheduler"
	"github.com/okian/gridrank/internal/adapters/sqlstore"
	app "github.com/okian/gridrank/internal/app"
	"github.com/okian/gridrank/internal/config"
	"github.com/okian/gridrank/pkg/logger"
	"github.com/okian/gridrank/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

// errNoLeague is returned when the memory store has nothing to serve.
var errNoLeague = errors.New("league_file is required with the memory store")

func main() {
	if err := run(); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error(ctx, "store close failed", logger.Error(err))
		}
	}()

	lbCache, closeCache, err := openCache(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer func() {
		if err := closeCache(); err != nil {
			log.Error(ctx, "cache close failed", logger.Error(err))
		}
	}()

	svc := app.New(store,
		app.WithLogger(log.Named("service")),
		app.WithCache(lbCache),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithMoVInfluence(cfg.WPNMoVInfluence),
		app.WithRegularSeasonWeeks(cfg.RegularSeasonWeeks),
		app.WithCurrentSeason(cfg.CurrentSeason),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		svc.Stop(stopCtx)
	}()

	if cfg.MetricsSchedule != "" {
		sched, err := newScheduler(cfg, svc, log)
		if err != nil {
			return fmt.Errorf("failed to schedule metrics runs: %w", err)
		}
		sched.Start()
		log.Info(ctx, "metrics runs scheduled",
			logger.String("schedule", cfg.MetricsSchedule),
			logger.Any("next", sched.Next()))
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := sched.Stop(stopCtx); err != nil {
				log.Warn(ctx, "scheduler stop timed out", logger.Error(err))
			}
		}()
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	apiServer := api.NewServer(svc,
		api.WithMaxLimit(cfg.MaxLeaderboardLimit),
		api.WithCORSOrigins(cfg.CORSOrigins),
		api.WithRequestTimeout(cfg.RequestTimeout()),
		api.WithLogger(log.Named("http")),
	)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.RequestTimeout() + readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// openStore builds the configured store. The memory store serves the league
// file directly. SQL stores import the league file when one is set and
// otherwise serve the league already in the database.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, func() error, error) {
	noop := func() error { return nil }
	if cfg.StoreDriver == config.DriverMemory {
		if cfg.LeagueFile == "" {
			return nil, nil, errNoLeague
		}
		reader, err := league.Load(cfg.LeagueFile)
		if err != nil {
			return nil, nil, err
		}
		mem := repository.NewMemoryStore()
		log.Info(ctx, "serving league from file",
			logger.String("file", cfg.LeagueFile),
			logger.Int("seasons", len(reader.League().Seasons)))
		return repository.Compose(mem, mem, reader), noop, nil
	}

	st, err := sqlstore.Open(ctx, cfg.StoreDriver, cfg.StoreDSN, sqlstore.WithLogger(log.Named("sqlstore")))
	if err != nil {
		return nil, nil, err
	}
	if cfg.LeagueFile != "" {
		reader, err := league.Load(cfg.LeagueFile)
		if err != nil {
			_ = st.Close()
			return nil, nil, err
		}
		if err := st.ImportLeague(ctx, reader.League()); err != nil {
			_ = st.Close()
			return nil, nil, fmt.Errorf("import league: %w", err)
		}
		log.Info(ctx, "league imported", logger.String("file", cfg.LeagueFile), logger.String("driver", cfg.StoreDriver))
	}
	return st, st.Close, nil
}

// openCache dials Redis when a URL is configured and falls back to no cache.
func openCache(cfg *config.Config, log logger.Logger) (cache.Cache, func() error, error) {
	if cfg.RedisURL == "" {
		return cache.Noop{}, func() error { return nil }, nil
	}
	c, closeFn, err := cache.Dial(cfg.RedisURL,
		cache.WithTTL(cfg.CacheTTL()),
		cache.WithLogger(log.Named("cache")))
	if err != nil {
		return nil, nil, err
	}
	return c, closeFn, nil
}

// newScheduler rates the current season on every tick of the schedule.
func newScheduler(cfg *config.Config, svc *app.Service, log logger.Logger) (*scheduler.Scheduler, error) {
	job := func(ctx context.Context) error {
		_, err := svc.Update(ctx, svc.CurrentSeason(), nil)
		if errors.Is(err, app.ErrRunInProgress) {
			return nil
		}
		return err
	}
	return scheduler.New(cfg.MetricsSchedule, job,
		scheduler.WithTimeout(cfg.RequestTimeout()),
		scheduler.WithLogger(log.Named("scheduler")))
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the queue and index gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = svc.Stats(ctx)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
