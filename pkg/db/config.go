package db

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-sql-driver/mysql"

	"github.com/ammar0144/docs4go/pkg/store"
)

// DefaultConfig returns a configuration for a local MySQL server.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            3306,
		Collation:       "utf8mb4_unicode_ci",
		TimeZone:        "UTC",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		Table:           DefaultTable,
		QueryTimeout:    30 * time.Second,
		PrepareStmt:     true,
		Logging:         LoggingConfig{Level: "error", SlowQueryThreshold: 200 * time.Millisecond},
	}
}

// Validate checks if the database configuration is valid
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("database port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Username == "" {
		return fmt.Errorf("database username is required")
	}
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("max_open_conns must be at least 1")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max_idle_conns cannot be greater than max_open_conns")
	}
	if c.Table != "" {
		if err := store.ValidateAttributeName(c.Table); err != nil {
			return fmt.Errorf("invalid table name: %w", err)
		}
	}

	if c.SSL.Enabled && !c.SSL.SkipVerify {
		if err := c.validateTLSFiles(); err != nil {
			return fmt.Errorf("TLS configuration error: %w", err)
		}
	}

	return nil
}

// TableName returns the configured documents table.
func (c *Config) TableName() string {
	if c.Table == "" {
		return DefaultTable
	}
	return c.Table
}

func (c *Config) validateTLSFiles() error {
	if c.SSL.CAFile != "" {
		if _, err := os.Stat(c.SSL.CAFile); err != nil {
			return fmt.Errorf("CA file not accessible: %w", err)
		}
	}

	if c.SSL.CertFile != "" || c.SSL.KeyFile != "" {
		if c.SSL.CertFile == "" || c.SSL.KeyFile == "" {
			return fmt.Errorf("both CertFile and KeyFile must be provided together")
		}
		if _, err := os.Stat(c.SSL.CertFile); err != nil {
			return fmt.Errorf("client certificate file not accessible: %w", err)
		}
		if _, err := os.Stat(c.SSL.KeyFile); err != nil {
			return fmt.Errorf("client key file not accessible: %w", err)
		}
	}

	return nil
}

// DriverConfig builds the go-sql-driver configuration, registering a TLS
// configuration with the driver when one is needed.
func (c *Config) DriverConfig() (*mysql.Config, error) {
	cfg := mysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	cfg.DBName = c.Database
	cfg.Collation = c.Collation
	cfg.Loc = parseLocation(c.TimeZone)
	cfg.ParseTime = true
	cfg.AllowNativePasswords = true

	if !c.SSL.Enabled {
		return cfg, nil
	}
	if c.SSL.SkipVerify {
		cfg.TLSConfig = "skip-verify"
		return cfg, nil
	}

	tlsConfig := &tls.Config{ServerName: c.SSL.ServerName}
	if c.SSL.CAFile != "" {
		caCert, err := os.ReadFile(c.SSL.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("invalid CA certificate in %s", c.SSL.CAFile)
		}
		tlsConfig.RootCAs = pool
	}
	if c.SSL.CertFile != "" && c.SSL.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.SSL.CertFile, c.SSL.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	name := c.tlsConfigName()
	// Re-registering the same name replaces the previous config, which is what
	// repeated calls with an identical Config want.
	if err := mysql.RegisterTLSConfig(name, tlsConfig); err != nil {
		return nil, fmt.Errorf("failed to register TLS config: %w", err)
	}
	cfg.TLSConfig = name
	return cfg, nil
}

// GetDSN returns the MySQL Data Source Name
func (c *Config) GetDSN() (string, error) {
	cfg, err := c.DriverConfig()
	if err != nil {
		return "", err
	}
	return cfg.FormatDSN(), nil
}

// tlsConfigName derives a stable driver registration name from the SSL settings.
func (c *Config) tlsConfigName() string {
	h := xxhash.New()
	for _, part := range []string{c.SSL.CAFile, c.SSL.CertFile, c.SSL.KeyFile, c.SSL.ServerName} {
		_, _ = h.WriteString(part)
		_, _ = h.WriteString("\x00")
	}
	return fmt.Sprintf("docs4go_tls_%016x", h.Sum64())
}

// parseLocation parses timezone string to *time.Location, falling back to UTC
func parseLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
