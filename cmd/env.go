package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdock/internal/config"
	"github.com/sells-group/dealdock/internal/dock"
	"github.com/sells-group/dealdock/internal/people"
	"github.com/sells-group/dealdock/internal/resilience"
	"github.com/sells-group/dealdock/internal/store"
	"github.com/sells-group/dealdock/pkg/kvstore"
)

func initStore(ctx context.Context) (store.Store, error) {
	return openStore(ctx, cfg)
}

func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store.Driver {
	case "sqlite":
		return store.NewSQLite(c.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	case "remote":
		timeout := time.Duration(c.Remote.TimeoutSecs) * time.Second
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		opts := []kvstore.Option{
			kvstore.WithHTTPClient(&http.Client{Timeout: timeout}),
			kvstore.WithRetry(resilience.FromSettings(c.Remote.RetryAttempts, c.Remote.RetryBackoffMs)),
			kvstore.WithRateLimit(c.Remote.RateLimit),
		}
		if c.Remote.Token != "" {
			opts = append(opts, kvstore.WithToken(c.Remote.Token))
		}
		return kvstore.NewClient(c.Remote.BaseURL, opts...), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// openMigrated opens the configured store and ensures its schema.
func openMigrated(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// initPeople loads the staff directory. No configured file yields an empty
// directory.
func initPeople() (*people.Directory, error) {
	if cfg.People.File == "" {
		return people.NewDirectory(nil)
	}
	return people.LoadFile(cfg.People.File)
}

// boardEnv is a board and the resources behind it.
type boardEnv struct {
	Board    *dock.Board
	Registry *prometheus.Registry
	closers  []func() error
}

// Close releases the board's cache connection, if any.
func (b *boardEnv) Close() {
	for _, c := range b.closers {
		if err := c(); err != nil {
			zap.L().Warn("close board resource", zap.Error(err))
		}
	}
}

func newBoard(ctx context.Context, st store.Store, c *config.Config, hooks ...dock.PassHook) (*boardEnv, error) {
	env := &boardEnv{Registry: prometheus.NewRegistry()}
	ttl := time.Duration(c.Dock.ProcessedTTLSecs) * time.Second
	if ttl <= 0 {
		ttl = dock.DefaultProcessedTTL
	}

	caches := dock.MemoryCaches(ttl)
	if c.Redis.Enabled {
		rdb, err := dock.NewRedisClient(ctx, c.Redis.Addr, c.Redis.Password, c.Redis.DB)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, rdb.Close)
		caches = redisCaches(rdb, c.Redis.Prefix, ttl)
	}

	engine := dock.NewEngine(st,
		dock.WithLimits(dock.Limits{
			Advance:   c.Dock.AdvanceLimit,
			Downgrade: c.Dock.DowngradeLimit,
			Conflict:  c.Dock.ConflictLimit,
		}),
		dock.WithCaches(caches),
		dock.WithMetrics(dock.NewMetrics(env.Registry)),
	)
	env.Board = dock.NewBoard(st, engine, dock.BoardConfig{
		Debounce: time.Duration(c.Dock.DebounceMs) * time.Millisecond,
		Interval: time.Duration(c.Dock.IntervalSecs) * time.Second,
	}, hooks...)
	return env, nil
}

// redisCaches keys each work kind under its own prefix.
func redisCaches(rdb redis.Cmdable, prefix string, ttl time.Duration) dock.CacheFactory {
	return func(kind string) dock.ProcessedCache {
		return dock.NewRedisCache(rdb, prefix+":"+kind+":", ttl)
	}
}
