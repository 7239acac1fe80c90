package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar0144/docs4go/pkg/redis"
	"github.com/ammar0144/docs4go/pkg/repository"
	"github.com/ammar0144/docs4go/pkg/store"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docs4go.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store)
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.Repository.AutoConflictResolution)
	assert.Equal(t, repository.DefaultConflictAttempts, cfg.Repository.ConflictAttempts)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, 30*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, []string{"127.0.0.1"}, cfg.Cassandra.Hosts)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
store: mysql
database:
  host: db.internal
  database: blog
  username: app
  query_timeout: 5s
  ssl:
    enabled: true
    skip_verify: true
redis:
  enabled: true
  key_prefix: blog
  default_ttl: 10m
repository:
  auto_conflict_resolution: false
  conflict_attempts: 5
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, StoreMySQL, cfg.Store)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
	assert.True(t, cfg.Database.SSL.SkipVerify)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "blog", cfg.Redis.KeyPrefix)
	assert.Equal(t, 10*time.Minute, cfg.Redis.DefaultTTL)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.False(t, cfg.Repository.AutoConflictResolution)
	assert.Equal(t, 5, cfg.Repository.ConflictAttempts)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "store: cassandra\n")
	t.Setenv("DOCS4GO_CASSANDRA_KEYSPACE", "blog")
	t.Setenv("DOCS4GO_CASSANDRA_HOSTS", "c1,c2")
	t.Setenv("DOCS4GO_REPOSITORY_CONFLICT_ATTEMPTS", "7")
	t.Setenv("DOCS4GO_REDIS_NULL_CACHE_TTL", "30s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StoreCassandra, cfg.Store)
	assert.Equal(t, "blog", cfg.Cassandra.Keyspace)
	assert.Equal(t, []string{"c1", "c2"}, cfg.Cassandra.Hosts)
	assert.Equal(t, 7, cfg.Repository.ConflictAttempts)
	assert.Equal(t, 30*time.Second, cfg.Redis.NullCacheTTL)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "store: sqlite\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store "sqlite"`)

	_, err = Load(writeConfig(t, "store: mysql\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database name is required")

	_, err = Load(writeConfig(t, "repository:\n  conflict_attempts: -1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflict_attempts")

	_, err = Load(writeConfig(t, "logging:\n  level: loud\n"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Logging = LoggingConfig{Level: "warn", Format: "json"}

	var buf bytes.Buffer
	log := cfg.NewLogger(&buf)
	log.Info("hidden")
	log.Warn("shown", "key", "value")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"key":"value"`)
}

func TestOpenMemory(t *testing.T) {
	cfg := Default()
	reg := prometheus.NewRegistry()

	backend, err := cfg.Open(context.Background(), nil, reg)
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	res, err := backend.Store.Save(ctx, &store.Record{Type: "Post", Attributes: map[string]any{"title": "t"}})
	require.NoError(t, err)
	rec, err := backend.Store.Fetch(ctx, "Post", res.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "t", rec.Attributes["title"])

	rc := cfg.RepositoryConfig(nil, reg)
	assert.Equal(t, cfg.Repository.ConflictAttempts, rc.ConflictAttempts)
	assert.Same(t, reg, rc.Registerer)
}

func TestOpenUnknownStore(t *testing.T) {
	cfg := Default()
	cfg.Store = "sqlite"
	_, err := cfg.Open(context.Background(), nil, nil)
	assert.Error(t, err)
}

func redisConfig(t *testing.T, mr *miniredis.Miniredis) *Config {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	cfg := Default()
	cfg.Redis.Enabled = true
	cfg.Redis.Host = mr.Host()
	cfg.Redis.Port = port
	cfg.Redis.MaxRetries = -1
	cfg.Redis.DialTimeout = 200 * time.Millisecond
	return cfg
}

func TestOpenWithRedisCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := redisConfig(t, mr)

	backend, err := cfg.Open(ctx, nil, prometheus.NewRegistry())
	require.NoError(t, err)
	defer backend.Close()

	cached, ok := backend.Store.(*redis.CachedStore)
	require.True(t, ok)

	res, err := cached.Save(ctx, &store.Record{Type: "Post", Attributes: map[string]any{"title": "t"}})
	require.NoError(t, err)
	_, err = cached.Fetch(ctx, "Post", res.ID, false)
	require.NoError(t, err)
	assert.NotEmpty(t, mr.Keys())

	require.NoError(t, cached.Purge(ctx, "Post"))
	assert.Empty(t, mr.Keys())
}

func TestOpenWithUnreachableRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := redisConfig(t, mr)
	mr.Close()

	var buf bytes.Buffer
	backend, err := cfg.Open(ctx, cfg.NewLogger(&buf), nil)
	require.NoError(t, err)
	defer backend.Close()
	assert.Contains(t, buf.String(), "redis cache unreachable")

	res, err := backend.Store.Save(ctx, &store.Record{Type: "Post", Attributes: map[string]any{"title": "t"}})
	require.NoError(t, err)
	rec, err := backend.Store.Fetch(ctx, "Post", res.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "t", rec.Attributes["title"])
}

func TestOpenUnreachableDatabase(t *testing.T) {
	cfg := Default()
	cfg.Store = StoreMySQL
	cfg.Database.Host = "127.0.0.1"
	cfg.Database.Port = 1

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := cfg.Open(ctx, nil, nil)
	assert.Error(t, err)
}
