// Package sqlstore implements the repository contracts over database/sql with
// the sqlite and postgres drivers.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite" // registers "sqlite"
	_ "github.com/lib/pq"             // registers "postgres"

	"github.com/okian/gridrank/internal/adapters/repository"
	"github.com/okian/gridrank/pkg/logger"
	"github.com/okian/gridrank/pkg/metrics"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const lockStripes = 64

// Store is a repository.Store backed by a SQL database.
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
	log    logger.Logger

	// Writes to one timeline take the same stripe.
	locks [lockStripes]sync.Mutex
}

var _ repository.Store = (*Store)(nil)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithClock sets the clock used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Open connects to dsn with driver and creates the schema.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// sqlite allows one writer; a single connection also keeps :memory: shared.
		db.SetMaxOpenConns(1)
	}
	s, err := New(ctx, db, driver, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and creates the schema.
func New(ctx context.Context, db *sql.DB, driver string, opts ...Option) (*Store, error) {
	s := &Store{
		db:     db,
		driver: driver,
		now:    time.Now,
		log:    logger.Get().Named("sqlstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("sqlstore: schema: %w", err)
		}
	}
	s.log.Info(ctx, "sql store ready", logger.String("driver", driver))
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind turns ? placeholders into $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.locks[h.Sum32()%lockStripes]
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency("sql_"+op, float64(time.Since(start).Microseconds())/1000.0)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
