package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar0144/docs4go/pkg/store"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Database = "docs"
	cfg.Username = "app"
	cfg.Password = "secret"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing host", func(c *Config) { c.Host = "" }, "host is required"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "port must be between"},
		{"missing database", func(c *Config) { c.Database = "" }, "database name is required"},
		{"missing username", func(c *Config) { c.Username = "" }, "username is required"},
		{"no connections", func(c *Config) { c.MaxOpenConns = 0 }, "max_open_conns"},
		{"idle over open", func(c *Config) { c.MaxIdleConns = 100 }, "max_idle_conns"},
		{"bad table", func(c *Config) { c.Table = "docs; DROP" }, "invalid table name"},
		{"missing CA", func(c *Config) {
			c.SSL = SSLConfig{Enabled: true, CAFile: "/nonexistent/ca.pem"}
		}, "CA file not accessible"},
		{"half a key pair", func(c *Config) {
			c.SSL = SSLConfig{Enabled: true, CertFile: "/tmp/cert.pem"}
		}, "must be provided together"},
		{"skip verify ignores files", func(c *Config) {
			c.SSL = SSLConfig{Enabled: true, SkipVerify: true, CAFile: "/nonexistent/ca.pem"}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetDSN(t *testing.T) {
	cfg := validConfig()
	dsn, err := cfg.GetDSN()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "app:secret@tcp(localhost:3306)/docs?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "collation=utf8mb4_unicode_ci")

	cfg.SSL = SSLConfig{Enabled: true, SkipVerify: true}
	dsn, err = cfg.GetDSN()
	require.NoError(t, err)
	assert.Contains(t, dsn, "tls=skip-verify")
}

func TestTableName(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, DefaultTable, cfg.TableName())
	cfg.Table = "archive"
	assert.Equal(t, "archive", cfg.TableName())
}

func TestTLSConfigNameIsStable(t *testing.T) {
	a := validConfig()
	a.SSL.CAFile = "/etc/ca.pem"
	b := validConfig()
	b.SSL.CAFile = "/etc/ca.pem"
	assert.Equal(t, a.tlsConfigName(), b.tlsConfigName())
	assert.True(t, strings.HasPrefix(a.tlsConfigName(), "docs4go_tls_"))

	b.SSL.ServerName = "db.internal"
	assert.NotEqual(t, a.tlsConfigName(), b.tlsConfigName())
}

func TestParseLocation(t *testing.T) {
	assert.Equal(t, "UTC", parseLocation("").String())
	assert.Equal(t, "UTC", parseLocation("Not/AZone").String())
}

func TestQueryForSelect(t *testing.T) {
	b, err := QueryFor("documents", store.Query{
		Type:  "Post",
		Where: map[string]any{"user_id": "u1", "status": nil},
		Limit: 5,
	})
	require.NoError(t, err)

	sql, args, err := b.BuildSelect()
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT * FROM documents WHERE type = ? AND deleted = ? AND `+
			`(JSON_EXTRACT(body, '$."status"') IS NULL OR JSON_TYPE(JSON_EXTRACT(body, '$."status"')) = 'NULL') AND `+
			`JSON_EXTRACT(body, '$."user_id"') = CAST(? AS JSON) ORDER BY seq ASC LIMIT 5`,
		sql)
	assert.Equal(t, []interface{}{"Post", false, `"u1"`}, args)
}

func TestQueryForWithDeletedDescending(t *testing.T) {
	b, err := QueryFor("documents", store.Query{
		Type:        "Post",
		Where:       map[string]any{"views": 3, "live": true},
		Descending:  true,
		WithDeleted: true,
	})
	require.NoError(t, err)

	sql, args, err := b.BuildSelect()
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT * FROM documents WHERE type = ? AND `+
			`JSON_EXTRACT(body, '$."live"') = CAST(? AS JSON) AND `+
			`JSON_EXTRACT(body, '$."views"') = CAST(? AS JSON) ORDER BY seq DESC`,
		sql)
	assert.Equal(t, []interface{}{"Post", "true", "3"}, args)
}

func TestQueryForCount(t *testing.T) {
	b, err := QueryFor("documents", store.Query{Type: "Comment", Where: map[string]any{"post_id": "p1"}, Limit: 2})
	require.NoError(t, err)

	sql, args, err := b.BuildCount()
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT COUNT(*) FROM documents WHERE type = ? AND deleted = ? AND JSON_EXTRACT(body, '$."post_id"') = CAST(? AS JSON)`,
		sql)
	assert.Equal(t, []interface{}{"Comment", false, `"p1"`}, args)
}

func TestQueryForRejectsUnsafeAttribute(t *testing.T) {
	_, err := QueryFor("documents", store.Query{Type: "Post", Where: map[string]any{`x"') OR 1=1 --`: 1}})
	assert.ErrorIs(t, err, store.ErrInvalidAttribute)
}

func TestConditionGroups(t *testing.T) {
	b := NewBuilder("documents").Select("id").
		Where("type", Equal, "Post").
		WhereGroup(Or, func(g *ConditionGroup) {
			g.Where("rev", NotEqual, "1-a").Where("body", IsNotNull, nil)
		})

	sql, args, err := b.BuildSelect()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM documents WHERE type = ? AND (rev != ? OR body IS NOT NULL)", sql)
	assert.Equal(t, []interface{}{"Post", "1-a"}, args)
}

func TestToRecord(t *testing.T) {
	rec, err := toRecord(Document{Seq: 7, Type: "Post", ID: "p1", Rev: "1-x", Deleted: true, Body: `{"title":"t","views":2}`})
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.Seq)
	assert.True(t, rec.Deleted)
	assert.Equal(t, map[string]any{"title": "t", "views": float64(2)}, rec.Attributes)

	_, err = toRecord(Document{Type: "Post", ID: "p2", Body: "{"})
	assert.Error(t, err)
}

func TestNewDocumentStoreDefaults(t *testing.T) {
	s := NewDocumentStore(nil, nil)
	assert.Equal(t, DefaultTable, s.table)
	assert.Zero(t, s.timeout)

	cfg := validConfig()
	cfg.Table = "docs"
	s = NewDocumentStore(nil, cfg)
	assert.Equal(t, "docs", s.table)
	assert.Equal(t, cfg.QueryTimeout, s.timeout)
}

func TestMigrationsEmbedded(t *testing.T) {
	up, err := migrationFiles.ReadFile("migrations/000001_create_documents.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS documents")

	_, err = migrationFiles.ReadFile("migrations/000001_create_documents.down.sql")
	assert.NoError(t, err)
}
