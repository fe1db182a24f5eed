package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/gridrank/internal/adapters/cache"
	"github.com/okian/gridrank/internal/adapters/http/api"
	"github.com/okian/gridrank/internal/adapters/league"
	app "github.com/okian/gridrank/internal/app"
	"github.com/okian/gridrank/internal/config"
	"github.com/okian/gridrank/internal/leaguegen"
	"github.com/okian/gridrank/pkg/logger"
)

func writeLeague(t *testing.T) string {
	t.Helper()
	l, err := leaguegen.Generate(leaguegen.Config{
		Seasons:                2,
		Conferences:            1,
		DivisionsPerConference: 2,
		TeamsPerDivision:       2,
		Seed:                   3,
	})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "league.yaml")
	if err := league.Save(path, l); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMainFunction(t *testing.T) {
	_ = logger.Init()

	convey.Convey("Given the main application", t, func() {
		convey.Convey("When loading configuration from the environment", func() {
			t.Setenv("GRIDRANK_ADDR", ":8080")
			t.Setenv("GRIDRANK_QUEUE_SIZE", "1000")
			t.Setenv("GRIDRANK_WORKER_COUNT", "4")

			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
		})

		convey.Convey("When the configuration is invalid", func() {
			t.Setenv("GRIDRANK_ADDR", "")
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

func TestOpenStore(t *testing.T) {
	_ = logger.Init()
	log := logger.Get()

	convey.Convey("Given a league file", t, func() {
		ctx := context.Background()
		path := writeLeague(t)

		convey.Convey("The memory store needs a league file", func() {
			cfg := config.New()
			_, _, err := openStore(ctx, cfg, log)
			convey.So(errors.Is(err, errNoLeague), convey.ShouldBeTrue)
		})

		convey.Convey("The memory store serves the file", func() {
			cfg := config.New()
			cfg.LeagueFile = path
			store, closeFn, err := openStore(ctx, cfg, log)
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = closeFn() }()

			seasons, err := store.Seasons(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(seasons), convey.ShouldEqual, 2)
		})

		convey.Convey("A missing league file is an error", func() {
			cfg := config.New()
			cfg.LeagueFile = filepath.Join(t.TempDir(), "absent.yaml")
			_, _, err := openStore(ctx, cfg, log)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("The sqlite store imports the file", func() {
			cfg := config.New()
			cfg.StoreDriver = config.DriverSQLite
			cfg.StoreDSN = filepath.Join(t.TempDir(), "gridrank.db")
			cfg.LeagueFile = path
			store, closeFn, err := openStore(ctx, cfg, log)
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = closeFn() }()

			teams, err := store.Teams(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(teams), convey.ShouldEqual, 4)
		})
	})
}

func TestOpenCache(t *testing.T) {
	_ = logger.Init()

	convey.Convey("Given cache configuration", t, func() {
		cfg := config.New()

		convey.Convey("No URL means no cache", func() {
			c, closeFn, err := openCache(cfg, logger.Get())
			convey.So(err, convey.ShouldBeNil)
			convey.So(c, convey.ShouldHaveSameTypeAs, cache.Noop{})
			convey.So(closeFn(), convey.ShouldBeNil)
		})

		convey.Convey("A malformed URL is rejected", func() {
			cfg.RedisURL = "not-a-url://"
			_, _, err := openCache(cfg, logger.Get())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestApplicationWiring(t *testing.T) {
	_ = logger.Init()

	convey.Convey("Given a started service over a league file", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.LeagueFile = writeLeague(t)
		store, _, err := openStore(ctx, cfg, logger.Get())
		convey.So(err, convey.ShouldBeNil)

		svc := app.New(store, app.WithWorkerCount(2))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop(ctx)

		convey.Convey("The API server builds a handler", func() {
			h := api.NewServer(svc, api.WithMaxLimit(cfg.MaxLeaderboardLimit)).Handler()
			convey.So(h, convey.ShouldNotBeNil)
		})

		convey.Convey("A bad schedule is rejected", func() {
			cfg.MetricsSchedule = "every now and then"
			_, err := newScheduler(cfg, svc, logger.Get())
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("A valid schedule reports its next run once started", func() {
			cfg.MetricsSchedule = "@every 1h"
			sched, err := newScheduler(cfg, svc, logger.Get())
			convey.So(err, convey.ShouldBeNil)
			sched.Start()
			convey.So(sched.Next().After(time.Now()), convey.ShouldBeTrue)
			convey.So(sched.Stop(ctx), convey.ShouldBeNil)
		})

		convey.Convey("The metrics updaters stop with their context", func() {
			tctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startSystemMetricsUpdater(tctx) }, convey.ShouldNotPanic)
			convey.So(func() { startServiceMetricsUpdater(tctx, svc) }, convey.ShouldNotPanic)
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})
	})
}
