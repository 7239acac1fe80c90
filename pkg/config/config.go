// Package config loads docs4go configuration from a YAML file and DOCS4GO_
// environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/ammar0144/docs4go/pkg/cassandra"
	"github.com/ammar0144/docs4go/pkg/db"
	"github.com/ammar0144/docs4go/pkg/redis"
	"github.com/ammar0144/docs4go/pkg/repository"
)

// EnvPrefix prefixes every environment override, e.g. DOCS4GO_DATABASE_HOST.
const EnvPrefix = "DOCS4GO"

// Store backends
const (
	StoreMemory    = "memory"
	StoreMySQL     = "mysql"
	StoreCassandra = "cassandra"
)

// Config is the root configuration
type Config struct {
	Store      string            `json:"store" yaml:"store"`
	Database   db.Config         `json:"database" yaml:"database"`
	Cassandra  cassandra.Config  `json:"cassandra" yaml:"cassandra"`
	Redis      redis.Config      `json:"redis" yaml:"redis"`
	Repository repository.Config `json:"repository" yaml:"repository"`
	Logging    LoggingConfig     `json:"logging" yaml:"logging"`
}

// LoggingConfig controls the application logger
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text, json
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cache := redis.DefaultConfig()
	cache.Enabled = false
	return &Config{
		Store:      StoreMemory,
		Database:   *db.DefaultConfig(),
		Cassandra:  *cassandra.DefaultConfig(),
		Redis:      *cache,
		Repository: repository.DefaultConfig(),
		Logging:    LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (optional) and applies environment overrides on top of Default.
func Load(path string) (*Config, error) {
	v := viper.New()
	if err := setDefaults(v, Default()); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	// Environment variables take precedence over the config file
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every leaf of defaults so that AutomaticEnv can
// override keys the config file does not mention.
func setDefaults(v *viper.Viper, defaults *Config) error {
	data, err := json.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("failed to encode defaults: %w", err)
	}
	tree := map[string]any{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to decode defaults: %w", err)
	}
	walkDefaults(v, "", tree)
	return nil
}

func walkDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		if sub, ok := value.(map[string]any); ok && len(sub) > 0 {
			walkDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, value)
	}
}

// Validate checks the selected backend and every enabled component
func (c *Config) Validate() error {
	var errs []error

	switch c.Store {
	case StoreMemory:
	case StoreMySQL:
		if err := c.Database.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	case StoreCassandra:
		if err := c.Cassandra.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("cassandra: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}

	if err := c.Redis.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("redis: %w", err))
	}
	if err := c.Repository.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("repository: %w", err))
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Logger builds the application logger on stderr.
func (c *Config) Logger() *slog.Logger {
	return c.NewLogger(os.Stderr)
}

// NewLogger builds the application logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Logging.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if level == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, err
	}
	return l, nil
}
