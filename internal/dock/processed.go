package dock

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// DefaultProcessedTTL is how long a deal stays suppressed after the engine
// last acted on it for a given concern.
const DefaultProcessedTTL = 10 * time.Second

// ProcessedCache remembers when a deal was last acted on for one concern.
type ProcessedCache interface {
	// Mark stamps id as processed at at.
	Mark(ctx context.Context, id string, at time.Time) error
	// Recent reports whether id was marked less than the TTL before now.
	Recent(ctx context.Context, id string, now time.Time) (bool, error)
	// Forget drops any stamp for id.
	Forget(ctx context.Context, id string) error
}

// MemoryCache is an in-process ProcessedCache.
type MemoryCache struct {
	ttl time.Duration

	mu    sync.Mutex
	stamp map[string]time.Time
}

// NewMemoryCache returns an empty cache. A non-positive ttl uses
// DefaultProcessedTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultProcessedTTL
	}
	return &MemoryCache{ttl: ttl, stamp: make(map[string]time.Time)}
}

func (c *MemoryCache) Mark(_ context.Context, id string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stamp[id] = at
	c.sweep(at)
	return nil
}

func (c *MemoryCache) Recent(_ context.Context, id string, now time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.stamp[id]
	if !ok {
		return false, nil
	}
	return now.Sub(at) < c.ttl, nil
}

func (c *MemoryCache) Forget(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stamp, id)
	return nil
}

// Len returns the number of stamps held, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stamp)
}

// sweep drops expired stamps. Caller holds mu.
func (c *MemoryCache) sweep(now time.Time) {
	for id, at := range c.stamp {
		if now.Sub(at) >= c.ttl {
			delete(c.stamp, id)
		}
	}
}

// RedisCache is a ProcessedCache shared by every dealdock process pointed at
// the same redis. Expiry is left to redis, so Recent ignores now.
type RedisCache struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisCache stores stamps under prefix+id.
func NewRedisCache(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultProcessedTTL
	}
	return &RedisCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(id string) string {
	return c.prefix + id
}

func (c *RedisCache) Mark(ctx context.Context, id string, at time.Time) error {
	err := c.rdb.Set(ctx, c.key(id), strconv.FormatInt(at.UnixMilli(), 10), c.ttl).Err()
	return eris.Wrapf(err, "dock: mark %s", id)
}

func (c *RedisCache) Recent(ctx context.Context, id string, _ time.Time) (bool, error) {
	err := c.rdb.Get(ctx, c.key(id)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "dock: lookup %s", id)
	}
	return true, nil
}

func (c *RedisCache) Forget(ctx context.Context, id string) error {
	return eris.Wrapf(c.rdb.Del(ctx, c.key(id)).Err(), "dock: forget %s", id)
}

// NewRedisClient opens a go-redis client and checks it with PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrapf(err, "dock: redis ping %s", addr)
	}
	return rdb, nil
}
