package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/gridrank/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.CurrentSeason, convey.ShouldEqual, 1)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverMemory)
			convey.So(cfg.WPNMoVInfluence, convey.ShouldEqual, 0.25)
			convey.So(cfg.RegularSeasonWeeks, convey.ShouldEqual, 13)
			convey.So(cfg.CacheTTL(), convey.ShouldEqual, 5*time.Minute)
			convey.So(cfg.RequestTimeout(), convey.ShouldEqual, 5*time.Minute)
			convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"*"})
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with invalid settings", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":         func(c *config.Config) { c.Addr = "" },
			"unknown driver":     func(c *config.Config) { c.StoreDriver = "mongo" },
			"sqlite without dsn": func(c *config.Config) { c.StoreDriver = config.DriverSQLite },
			"postgres no dsn":    func(c *config.Config) { c.StoreDriver = config.DriverPostgres },
			"negative ttl":       func(c *config.Config) { c.CacheTTLSeconds = -1 },
			"season zero":        func(c *config.Config) { c.CurrentSeason = 0 },
			"negative influence": func(c *config.Config) { c.WPNMoVInfluence = -0.1 },
			"zero timeout":       func(c *config.Config) { c.RequestTimeoutSeconds = 0 },
			"zero limit":         func(c *config.Config) { c.MaxLeaderboardLimit = 0 },
		}

		for name, mutate := range cases {
			cfg := config.New()
			mutate(cfg)

			convey.Convey("Then "+name+" is rejected", func() {
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("Then an sql driver with a dsn is accepted", func() {
			cfg := config.New()
			cfg.StoreDriver = config.DriverSQLite
			cfg.StoreDSN = "file:gridrank.db"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
