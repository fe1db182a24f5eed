// Package cache keeps rendered leaderboards in Redis between metrics runs.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/gridrank/internal/domain/model"
	"github.com/okian/gridrank/internal/domain/types"
	"github.com/okian/gridrank/pkg/logger"
	"github.com/okian/gridrank/pkg/metrics"
)

// KeyPrefix namespaces every key written by the cache.
const KeyPrefix = "gridrank:leaderboard:"

// DefaultTTL applies when no TTL option is given.
const DefaultTTL = 5 * time.Minute

// Cache stores full leaderboards by entity kind.
type Cache interface {
	// Leaderboard returns the cached board and whether it was present.
	Leaderboard(ctx context.Context, kind model.EntityKind) ([]types.Entry, bool, error)
	StoreLeaderboard(ctx context.Context, kind model.EntityKind, entries []types.Entry) error
	// Invalidate drops every cached board.
	Invalidate(ctx context.Context) error
}

// Client is the subset of the go-redis API the cache needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Key returns the Redis key of kind's leaderboard.
func Key(kind model.EntityKind) string {
	return KeyPrefix + string(kind)
}

// Option applies a configuration option to the Redis cache.
type Option func(*Redis)

// WithTTL sets how long a stored board lives.
func WithTTL(ttl time.Duration) Option {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Redis) {
		if l != nil {
			r.log = l
		}
	}
}

// Redis is a Cache backed by a Redis client.
type Redis struct {
	client Client
	ttl    time.Duration
	log    logger.Logger
}

var _ Cache = (*Redis)(nil)

// NewRedis wraps client.
func NewRedis(client Client, opts ...Option) *Redis {
	r := &Redis{client: client, ttl: DefaultTTL, log: logger.Get().Named("cache")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dial parses a redis:// URL and returns a cache over a new client. The
// returned close func releases the client.
func Dial(url string, opts ...Option) (*Redis, func() error, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	c := redis.NewClient(o)
	return NewRedis(c, opts...), c.Close, nil
}

// Leaderboard implements Cache.
func (r *Redis) Leaderboard(ctx context.Context, kind model.EntityKind) ([]types.Entry, bool, error) {
	data, err := r.client.Get(ctx, Key(kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheResult("miss")
		return nil, false, nil
	}
	if err != nil {
		metrics.RecordCacheResult("error")
		return nil, false, fmt.Errorf("cache: get %s: %w", kind, err)
	}
	var entries []types.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		metrics.RecordCacheResult("error")
		r.log.Warn(ctx, "dropping unreadable leaderboard", logger.String("kind", string(kind)), logger.Error(err))
		_ = r.client.Del(ctx, Key(kind)).Err()
		return nil, false, nil
	}
	metrics.RecordCacheResult("hit")
	return entries, true, nil
}

// StoreLeaderboard implements Cache.
func (r *Redis) StoreLeaderboard(ctx context.Context, kind model.EntityKind, entries []types.Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", kind, err)
	}
	if err := r.client.Set(ctx, Key(kind), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", kind, err)
	}
	return nil
}

// Invalidate implements Cache.
func (r *Redis) Invalidate(ctx context.Context) error {
	if err := r.client.Del(ctx, Key(model.KindTeam), Key(model.KindCoach)).Err(); err != nil {
		return fmt.Errorf("cache: invalidate: %w", err)
	}
	return nil
}

// Noop is a Cache that never holds anything.
type Noop struct{}

var _ Cache = Noop{}

// Leaderboard implements Cache.
func (Noop) Leaderboard(context.Context, model.EntityKind) ([]types.Entry, bool, error) {
	return nil, false, nil
}

// StoreLeaderboard implements Cache.
func (Noop) StoreLeaderboard(context.Context, model.EntityKind, []types.Entry) error { return nil }

// Invalidate implements Cache.
func (Noop) Invalidate(context.Context) error { return nil }
