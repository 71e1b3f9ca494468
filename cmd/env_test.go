//go:build !integration

package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealdock/internal/config"
	"github.com/sells-group/dealdock/internal/dock"
	"github.com/sells-group/dealdock/internal/model"
	"github.com/sells-group/dealdock/internal/store"
	"github.com/sells-group/dealdock/pkg/kvstore"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "cmd.db"),
		},
		Dock: config.DockConfig{
			ProcessedTTLSecs: 10,
			AdvanceLimit:     1,
			DowngradeLimit:   1,
			ConflictLimit:    8,
		},
		Redis: config.RedisConfig{Prefix: "dealdock:processed"},
	}
}

func TestOpenStore_SQLite(t *testing.T) {
	c := testConfig(t)
	st, err := openStore(context.Background(), c)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, ok := st.(*store.SQLiteStore)
	assert.True(t, ok)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestOpenStore_Remote(t *testing.T) {
	c := testConfig(t)
	c.Store.Driver = "remote"
	c.Remote = config.RemoteConfig{
		BaseURL:        "http://localhost:9999",
		Token:          "secret",
		RateLimit:      5,
		RetryAttempts:  2,
		RetryBackoffMs: 10,
	}

	st, err := openStore(context.Background(), c)
	require.NoError(t, err)
	_, ok := st.(*kvstore.Client)
	assert.True(t, ok)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	c := testConfig(t)
	c.Store.Driver = "mongo"

	_, err := openStore(context.Background(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver: mongo")
}

func TestNewBoard_Memory(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()
	st, err := openStore(ctx, c)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	env, err := newBoard(ctx, st, c)
	require.NoError(t, err)
	defer env.Close()

	rep, err := env.Board.Pass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Deals)

	families, err := env.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewBoard_RedisCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	c := testConfig(t)
	c.Redis.Enabled = true
	c.Redis.Addr = mr.Addr()

	ctx := context.Background()
	st, err := openStore(ctx, c)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	ready := readyDeal()
	ready.ID = ""
	ready.Source = "crm"
	ready.DockPhase = 0
	created, err := st.Create(ctx, ready)
	require.NoError(t, err)
	require.Equal(t, model.PhaseIncoming, created.DockPhase)

	env, err := newBoard(ctx, st, c)
	require.NoError(t, err)
	defer env.Close()

	rep, err := env.Board.Pass(ctx)
	require.NoError(t, err)
	require.Len(t, rep.Advanced, 1)

	assert.True(t, mr.Exists("dealdock:processed:advance:"+created.ID))
}

func TestNewBoard_RedisUnreachable(t *testing.T) {
	c := testConfig(t)
	c.Redis.Enabled = true
	c.Redis.Addr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := openStore(ctx, c)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, err = newBoard(ctx, st, c)
	assert.Error(t, err)
}

func TestRedisCaches_KeysPerKind(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := dock.NewRedisClient(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	defer rdb.Close() //nolint:errcheck

	factory := redisCaches(rdb, "p", time.Minute)
	ctx := context.Background()
	require.NoError(t, factory("advance").Mark(ctx, "d1", time.Now()))
	require.NoError(t, factory("conflict").Mark(ctx, "d1", time.Now()))

	assert.True(t, mr.Exists("p:advance:d1"))
	assert.True(t, mr.Exists("p:conflict:d1"))
}
