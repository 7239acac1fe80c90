package redis

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache key constants for consistent key generation across the application
const (
	cacheKeySeparator     = ":"
	cacheDependencyPrefix = "deps"
)

// Stored values carry a one byte header describing the payload encoding.
const (
	encodingRaw  byte = 0
	encodingGzip byte = 1
)

// Manager manages Redis connections and cache operations
type Manager struct {
	config  *Config
	client  redis.UniversalClient
	metrics *Metrics
	log     *slog.Logger
}

// NewManager creates a new Redis cache manager
func NewManager(config *Config) (*Manager, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}

	log := config.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	manager := &Manager{
		config:  config,
		metrics: NewMetrics(config.Registerer),
		log:     log.With("component", "redis_cache"),
	}

	// Initialize Redis client based on configuration
	manager.initializeClient()

	return manager, nil
}

// initializeClient sets up the Redis client based on configuration
func (m *Manager) initializeClient() {
	if !m.config.Enabled {
		return // Skip initialization if cache is disabled
	}

	if m.config.IsClusterMode() {
		// Redis Cluster configuration
		m.client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:           m.config.Cluster.Addresses,
			Username:        m.config.Cluster.Username,
			Password:        m.config.Cluster.Password,
			PoolSize:        m.config.PoolSize,
			MinIdleConns:    m.config.MinIdleConns,
			ConnMaxLifetime: m.config.MaxConnAge,
			PoolTimeout:     m.config.PoolTimeout,
			ConnMaxIdleTime: m.config.IdleTimeout,
			MaxRetries:      m.config.MaxRetries,
			ReadTimeout:     m.config.ReadTimeout,
			WriteTimeout:    m.config.WriteTimeout,
			DialTimeout:     m.config.DialTimeout,
		})
		return
	}

	// Single Redis instance configuration
	m.client = redis.NewClient(&redis.Options{
		Addr:            m.config.GetAddr(),
		Password:        m.config.Password,
		DB:              m.config.Database,
		PoolSize:        m.config.PoolSize,
		MinIdleConns:    m.config.MinIdleConns,
		ConnMaxLifetime: m.config.MaxConnAge,
		PoolTimeout:     m.config.PoolTimeout,
		ConnMaxIdleTime: m.config.IdleTimeout,
		MaxRetries:      m.config.MaxRetries,
		ReadTimeout:     m.config.ReadTimeout,
		WriteTimeout:    m.config.WriteTimeout,
		DialTimeout:     m.config.DialTimeout,
	})
}

// Config returns the manager's configuration
func (m *Manager) Config() *Config {
	return m.config
}

// Metrics returns the manager's collectors
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// Enabled reports whether cache operations reach Redis.
func (m *Manager) Enabled() bool {
	return m.config.Enabled && m.client != nil
}

// Close closes the Redis connection
func (m *Manager) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// Ping tests the Redis connection
// Returns nil if cache is disabled (not an error condition)
// Returns ErrConnectionFailed if ping fails
func (m *Manager) Ping(ctx context.Context) error {
	// Cache disabled is not an error - it's a valid configuration state
	if !m.config.Enabled {
		return nil
	}

	if m.client == nil {
		return ErrClientNotInitialized
	}

	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return nil
}

// checkClient validates that cache is enabled and client is initialized
func (m *Manager) checkClient() error {
	if !m.config.Enabled {
		return ErrCacheDisabled
	}
	if m.client == nil {
		return ErrClientNotInitialized
	}
	return nil
}

// Key joins parts under the configured prefix, e.g. "docs4go:doc:Post:42".
func (m *Manager) Key(parts ...string) string {
	return m.config.prefix() + cacheKeySeparator + strings.Join(parts, cacheKeySeparator)
}

func (m *Manager) dependencyKey(dependency string) string {
	return m.Key(cacheDependencyPrefix, dependency)
}

// Get retrieves a value from cache
func (m *Manager) Get(ctx context.Context, key string) ([]byte, error) {
	if err := m.checkClient(); err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := m.client.Get(ctx, key).Bytes()
	m.metrics.RecordGet(time.Since(start))

	if errors.Is(err, redis.Nil) {
		m.metrics.RecordCacheMiss()
		if m.config.Logging.LogCacheMisses {
			m.log.DebugContext(ctx, "cache miss", "key", key)
		}
		return nil, ErrKeyNotFound
	}

	if err != nil {
		m.metrics.RecordCacheError()
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	m.metrics.RecordCacheHit()
	if m.config.Logging.LogCacheHits {
		m.log.DebugContext(ctx, "cache hit", "key", key)
	}
	return m.decode(data)
}

// Set stores a value in cache with the default TTL
func (m *Manager) Set(ctx context.Context, key string, value []byte) error {
	return m.SetWithTTL(ctx, key, value, m.config.DefaultTTL)
}

// SetWithTTL stores a value in cache with custom TTL
func (m *Manager) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := m.checkClient(); err != nil {
		return err
	}

	data, err := m.encode(value)
	if err != nil {
		return err
	}

	start := time.Now()
	err = m.client.Set(ctx, key, data, ttl).Err()
	m.metrics.RecordSet(time.Since(start))
	if err != nil {
		m.metrics.RecordCacheError()
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// GetValue retrieves and decodes a msgpack value from cache
func (m *Manager) GetValue(ctx context.Context, key string, target interface{}) error {
	data, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := msgpack.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return nil
}

// SetValue encodes value with msgpack and stores it with ttl
func (m *Manager) SetValue(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := m.checkClient(); err != nil {
		return err
	}
	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return m.SetWithTTL(ctx, key, data, ttl)
}

// Delete removes keys from cache
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	if err := m.checkClient(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	start := time.Now()
	err := m.client.Del(ctx, keys...).Err()
	m.metrics.RecordDelete(time.Since(start))

	return err
}

// InvalidatePattern removes keys matching a pattern using SCAN instead of KEYS
// SCAN is non-blocking and production-safe, unlike KEYS which blocks the Redis server
func (m *Manager) InvalidatePattern(ctx context.Context, pattern string) error {
	if err := m.checkClient(); err != nil {
		return err
	}

	var cursor uint64
	const scanBatchSize = 100

	for {
		batch, next, err := m.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("failed to scan keys with pattern %s: %w", pattern, err)
		}

		// Delete keys in batches to avoid large atomic operations
		if len(batch) > 0 {
			if err := m.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("failed to delete batch: %w", err)
			}
			m.metrics.RecordInvalidation()
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if m.config.Logging.LogInvalidations {
		m.log.InfoContext(ctx, "invalidated cache pattern", "pattern", pattern)
	}
	return nil
}

// SetWithDependency stores a value and registers it under dependency in one pipeline,
// so that InvalidateDependency removes it.
func (m *Manager) SetWithDependency(ctx context.Context, key string, value interface{}, dependency string) error {
	if err := m.checkClient(); err != nil {
		return err
	}

	raw, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	data, err := m.encode(raw)
	if err != nil {
		return err
	}

	depKey := m.dependencyKey(dependency)

	pipe := m.client.TxPipeline()
	pipe.Set(ctx, key, data, m.config.DefaultTTL)
	pipe.SAdd(ctx, depKey, key)
	// The set outlives its members so a late invalidation still finds them.
	pipe.Expire(ctx, depKey, m.config.DefaultTTL*2)

	start := time.Now()
	_, err = pipe.Exec(ctx)
	m.metrics.RecordSet(time.Since(start))
	if err != nil {
		m.metrics.RecordCacheError()
		return fmt.Errorf("failed to store dependent key: %w", err)
	}

	m.metrics.RecordDependency()
	return nil
}

// InvalidateDependency clears every key registered under dependency
func (m *Manager) InvalidateDependency(ctx context.Context, dependency string) error {
	if err := m.checkClient(); err != nil {
		return err
	}

	depKey := m.dependencyKey(dependency)

	keys, err := m.client.SMembers(ctx, depKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to get dependencies: %w", err)
	}

	if err := m.Delete(ctx, append(keys, depKey)...); err != nil {
		return fmt.Errorf("failed to delete dependent keys: %w", err)
	}
	m.metrics.RecordInvalidation()

	if m.config.Logging.LogInvalidations {
		m.log.DebugContext(ctx, "invalidated dependent keys", "dependency", dependency, "keys", len(keys))
	}
	return nil
}

// Exists checks if a key exists in cache
func (m *Manager) Exists(ctx context.Context, key string) (bool, error) {
	if err := m.checkClient(); err != nil {
		return false, err
	}

	n, err := m.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// encode prefixes value with its encoding header, compressing it when configured
// and worthwhile.
func (m *Manager) encode(value []byte) ([]byte, error) {
	cfg := m.config.LargeValue

	if cfg.MaxValueSize > 0 && len(value) > cfg.MaxValueSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds maximum %d bytes", ErrValueTooLarge, len(value), cfg.MaxValueSize)
	}

	if cfg.EnableCompression && cfg.CompressThreshold > 0 && len(value) > cfg.CompressThreshold {
		compressed, err := compressData(value)
		if err != nil {
			return nil, fmt.Errorf("failed to compress value: %w", err)
		}

		// Use compressed version only if it's smaller
		if len(compressed) < len(value) {
			m.metrics.RecordCompression(len(value) - len(compressed))
			return append([]byte{encodingGzip}, compressed...), nil
		}
	}

	return append([]byte{encodingRaw}, value...), nil
}

func (m *Manager) decode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty value", ErrSerializationFailed)
	}
	switch data[0] {
	case encodingRaw:
		return data[1:], nil
	case encodingGzip:
		out, err := decompressData(data[1:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown encoding %d", ErrSerializationFailed, data[0])
	}
}

// compressData compresses data using gzip
func compressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// decompressData decompresses gzip data
func decompressData(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}
