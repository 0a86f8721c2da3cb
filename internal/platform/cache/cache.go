package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"hrportal/internal/requestctx"
)

// Cache is a JSON read-through cache over Redis. A nil *Cache, or one
// without a client, always calls the loader.
type Cache struct {
	rdb   redis.Cmdable
	ttl   time.Duration
	group singleflight.Group
}

func New(rdb redis.Cmdable, ttl time.Duration) *Cache {
	if client, ok := rdb.(*redis.Client); ok && client == nil {
		rdb = nil
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// NewClient connects to Redis. An empty addr returns nil.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (c *Cache) enabled() bool {
	return c != nil && c.rdb != nil
}

func generationKey(key string) string {
	return key + ":gen"
}

// versioned resolves key to its current generation. Values are stored under
// the versioned name, so a load that raced an invalidation lands on a
// generation no reader asks for again.
func (c *Cache) versioned(ctx context.Context, key string) string {
	gen, err := c.rdb.Get(ctx, generationKey(key)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		requestctx.Logger(ctx).Warn().Err(err).Str("key", key).Msg("cache generation read failed")
	}
	return key + "@" + strconv.FormatInt(gen, 10)
}

// Fetch returns the cached value for key or loads, stores and returns it.
// Concurrent misses for the same key share a single load.
func Fetch[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	if !c.enabled() {
		return load(ctx)
	}
	key = c.versioned(ctx, key)

	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var cached T
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		requestctx.Logger(ctx).Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return value, err
		}
		if payload, err := json.Marshal(value); err == nil {
			if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
				requestctx.Logger(ctx).Warn().Err(err).Str("key", key).Msg("cache write failed")
			}
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate bumps the generation of each key so later reads miss. Failures
// are logged, never returned.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if !c.enabled() {
		return
	}
	for _, key := range keys {
		if err := c.rdb.Incr(ctx, generationKey(key)).Err(); err != nil {
			requestctx.Logger(ctx).Warn().Err(err).Str("key", key).Msg("cache invalidate failed")
		}
	}
}
