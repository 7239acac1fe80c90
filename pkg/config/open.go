package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ammar0144/docs4go/pkg/cassandra"
	"github.com/ammar0144/docs4go/pkg/db"
	"github.com/ammar0144/docs4go/pkg/redis"
	"github.com/ammar0144/docs4go/pkg/repository"
	"github.com/ammar0144/docs4go/pkg/store"
	"github.com/ammar0144/docs4go/pkg/store/memory"
)

// Backend is an opened document store together with the connections behind it.
type Backend struct {
	Store store.Store

	closers []func() error
}

// Close releases every connection opened for the backend.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open connects the configured store, wrapping it with the Redis cache when
// the cache is enabled. reg may be nil.
//
// An unreachable MySQL server fails the call. An unreachable Redis server is
// logged and the cache degrades to the underlying store until it recovers.
func (c *Config) Open(ctx context.Context, log *slog.Logger, reg prometheus.Registerer) (*Backend, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	b := &Backend{}

	switch c.Store {
	case StoreMemory:
		b.Store = memory.New()
	case StoreMySQL:
		dbConfig := c.Database
		m, err := db.NewManager(&dbConfig)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, m.Close)
		if err := m.Ping(ctx); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("failed to reach database: %w", err)
		}
		if stats, err := m.Stats(); err == nil {
			log.Debug("database connected",
				"database", m.Config().Database,
				"table", m.Config().TableName(),
				"max_open_conns", stats.MaxOpenConnections)
		}
		if dbConfig.AutoMigrate {
			if err := db.MigrateUp(m); err != nil {
				_ = b.Close()
				return nil, err
			}
		}
		b.Store = m.Store()
	case StoreCassandra:
		cassConfig := c.Cassandra
		s, err := cassandra.NewStore(&cassConfig)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() error { s.Close(); return nil })
		b.Store = s
	default:
		return nil, fmt.Errorf("unknown store %q", c.Store)
	}

	if c.Redis.Enabled {
		cacheConfig := c.Redis
		cacheConfig.Logger = log
		cacheConfig.Registerer = reg
		cache, err := redis.NewManager(&cacheConfig)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.closers = append(b.closers, cache.Close)
		if err := cache.Ping(ctx); err != nil {
			log.Warn("redis cache unreachable", "addr", cache.Config().GetAddr(), "error", err)
		}
		b.Store = redis.NewCachedStore(b.Store, cache)
	}

	log.Info("document store opened", "store", c.Store, "cache", c.Redis.Enabled)
	return b, nil
}

// RepositoryConfig returns the repository settings with the logger and
// registerer attached.
func (c *Config) RepositoryConfig(log *slog.Logger, reg prometheus.Registerer) repository.Config {
	rc := c.Repository
	rc.Logger = log
	rc.Registerer = reg
	return rc
}
