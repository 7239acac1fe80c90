package redis

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ammar0144/docs4go/pkg/store"
	"github.com/ammar0144/docs4go/pkg/store/memory"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"disabled skips checks", func(c *Config) { c.Enabled = false; c.Host = "" }, false},
		{"missing host", func(c *Config) { c.Host = "" }, true},
		{"bad port", func(c *Config) { c.Port = 0 }, true},
		{"zero ttl", func(c *Config) { c.DefaultTTL = 0 }, true},
		{"negative null ttl", func(c *Config) { c.NullCacheTTL = -time.Second }, true},
		{"no pool", func(c *Config) { c.PoolSize = 0 }, true},
		{"bad prefix", func(c *Config) { c.KeyPrefix = "a:b" }, true},
		{"cluster without addresses", func(c *Config) { c.Cluster.Enabled = true }, true},
		{"cluster ignores host", func(c *Config) {
			c.Host = ""
			c.Cluster = ClusterConfig{Enabled: true, Addresses: []string{"r1:6379"}}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDisabledManager(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	m, err := NewManager(cfg)
	require.NoError(t, err)
	assert.False(t, m.Enabled())
	assert.NoError(t, m.Ping(ctx))
	assert.NoError(t, m.Close())

	_, err = m.Get(ctx, "k")
	assert.True(t, IsCacheDisabled(err))
	assert.True(t, IsCacheDisabled(m.Set(ctx, "k", []byte("v"))))
	assert.True(t, IsCacheDisabled(m.SetValue(ctx, "k", 1, time.Minute)))
	assert.True(t, IsCacheDisabled(m.InvalidateDependency(ctx, "Post")))
}

func TestNewManagerRejectsInvalidConfig(t *testing.T) {
	_, err := NewManager(nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Host = ""
	_, err = NewManager(cfg)
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	m, err := NewManager(DefaultConfig())
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, "docs4go:doc:Post:42", m.Key("doc", "Post", "42"))
	assert.Equal(t, "docs4go:deps:Post", m.dependencyKey("Post"))

	cfg := DefaultConfig()
	cfg.KeyPrefix = "blog"
	m2, err := NewManager(cfg)
	require.NoError(t, err)
	defer m2.Close()
	assert.Equal(t, "blog:doc:Post:42", m2.Key("doc", "Post", "42"))
}

func TestEncodeDecode(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := DefaultConfig()
	cfg.Registerer = reg
	cfg.LargeValue = LargeValueConfig{MaxValueSize: 1 << 20, CompressThreshold: 64, EnableCompression: true}
	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer m.Close()

	small := []byte("hello")
	data, err := m.encode(small)
	require.NoError(t, err)
	assert.Equal(t, encodingRaw, data[0])
	out, err := m.decode(data)
	require.NoError(t, err)
	assert.Equal(t, small, out)

	large := bytes.Repeat([]byte("abcdefgh"), 1024)
	data, err = m.encode(large)
	require.NoError(t, err)
	assert.Equal(t, encodingGzip, data[0])
	assert.Less(t, len(data), len(large))
	out, err = m.decode(data)
	require.NoError(t, err)
	assert.Equal(t, large, out)
	assert.Greater(t, testutil.ToFloat64(m.Metrics().compression), 0.0)

	_, err = m.encode(make([]byte, 2<<20))
	assert.ErrorIs(t, err, ErrValueTooLarge)

	_, err = m.decode([]byte{9, 1, 2})
	assert.ErrorIs(t, err, ErrSerializationFailed)
	_, err = m.decode(nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestCachedRecordRoundTrip(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := &store.Record{
		Type:       "Post",
		ID:         "p1",
		Rev:        "2-abc",
		Seq:        3,
		Deleted:    true,
		Attributes: map[string]any{"title": "t", "views": 2, "tags": []any{"a"}},
		CreatedAt:  created,
		UpdatedAt:  created,
	}

	entry, err := newCachedRecord(rec)
	require.NoError(t, err)
	data, err := msgpack.Marshal(entry)
	require.NoError(t, err)

	var decoded cachedRecord
	require.NoError(t, msgpack.Unmarshal(data, &decoded))
	got, err := decoded.record()
	require.NoError(t, err)

	assert.Equal(t, "2-abc", got.Rev)
	assert.Equal(t, int64(3), got.Seq)
	assert.True(t, got.Deleted)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Equal(t, map[string]any{"title": "t", "views": float64(2), "tags": []any{"a"}}, got.Attributes)
}

func TestQueryFingerprint(t *testing.T) {
	base := store.Query{Type: "Post", Where: map[string]any{"user_id": "u1", "status": "live"}}
	same := store.Query{Type: "Post", Where: map[string]any{"status": "live", "user_id": "u1"}}
	assert.Equal(t, queryFingerprint(base, true), queryFingerprint(same, true))
	assert.Len(t, queryFingerprint(base, true), 16)

	limited := base
	limited.Limit = 5
	assert.NotEqual(t, queryFingerprint(base, true), queryFingerprint(limited, true))
	assert.Equal(t, queryFingerprint(base, false), queryFingerprint(limited, false))

	deleted := base
	deleted.WithDeleted = true
	assert.NotEqual(t, queryFingerprint(base, false), queryFingerprint(deleted, false))

	numeric := store.Query{Type: "Post", Where: map[string]any{"views": 1}}
	float := store.Query{Type: "Post", Where: map[string]any{"views": 1.0}}
	assert.Equal(t, queryFingerprint(numeric, true), queryFingerprint(float, true))
}

func TestVisible(t *testing.T) {
	rec := &store.Record{Type: "Post", ID: "p1", Deleted: true}
	_, err := visible(rec, false)
	assert.True(t, store.IsNotFound(err))

	got, err := visible(rec, true)
	require.NoError(t, err)
	assert.Same(t, rec, got)
}

func exerciseStore(t *testing.T, s store.Store, mem *memory.Store) {
	t.Helper()
	ctx := context.Background()

	res, err := s.Save(ctx, &store.Record{Type: "Post", Attributes: map[string]any{"title": "a"}})
	require.NoError(t, err)

	rec, err := s.Fetch(ctx, "Post", res.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "a", rec.Attributes["title"])

	rec.Attributes["title"] = "b"
	rec.Deleted = true
	_, err = s.Save(ctx, rec)
	require.NoError(t, err)

	_, err = s.Fetch(ctx, "Post", res.ID, false)
	assert.True(t, store.IsNotFound(err))
	rec, err = s.Fetch(ctx, "Post", res.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "b", rec.Attributes["title"])

	recs, err := s.Query(ctx, store.Query{Type: "Post", WithDeleted: true})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	n, err := s.Count(ctx, store.Query{Type: "Post"})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.Save(ctx, &store.Record{Type: "Post", ID: res.ID, Rev: "1-stale"})
	assert.True(t, store.IsConflict(err))

	require.NoError(t, s.Delete(ctx, "Post", res.ID))
	assert.Zero(t, mem.Len("Post"))
	assert.True(t, store.IsNotFound(s.Delete(ctx, "Post", res.ID)))
}

func TestCachedStoreDisabledPassesThrough(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	m, err := NewManager(cfg)
	require.NoError(t, err)

	mem := memory.New()
	exerciseStore(t, NewCachedStore(mem, m), mem)
}

func TestCachedStoreSurvivesUnreachableRedis(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := DefaultConfig()
	cfg.Port = 1
	cfg.Host = "127.0.0.1"
	cfg.MaxRetries = -1
	cfg.DialTimeout = 100 * time.Millisecond
	cfg.Registerer = reg
	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer m.Close()

	assert.True(t, IsConnectionFailed(m.Ping(context.Background())))

	mem := memory.New()
	exerciseStore(t, NewCachedStore(mem, m), mem)
	assert.Greater(t, testutil.ToFloat64(m.Metrics().lookups.WithLabelValues("error")), 0.0)
}
