// Package cassandra stores documents in a Cassandra table, one partition per
// document type, using lightweight transactions for revision checks.
package cassandra

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/ammar0144/docs4go/pkg/store"
)

// Config holds Cassandra document store configuration
type Config struct {
	Hosts    []string `json:"hosts" yaml:"hosts"`
	Port     int      `json:"port" yaml:"port"`
	Keyspace string   `json:"keyspace" yaml:"keyspace"`
	Table    string   `json:"table" yaml:"table"`
	Username string   `json:"username" yaml:"username"`
	Password string   `json:"password" yaml:"password"`

	Consistency       string        `json:"consistency" yaml:"consistency"` // Default: QUORUM
	NumConns          int           `json:"num_conns" yaml:"num_conns"`
	Timeout           time.Duration `json:"timeout" yaml:"timeout"`
	ConnectTimeout    time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	CreateSchema      bool          `json:"create_schema" yaml:"create_schema"`
	ReplicationFactor int           `json:"replication_factor" yaml:"replication_factor"`
}

// DefaultConfig returns a configuration for a single local node.
func DefaultConfig() *Config {
	return &Config{
		Hosts:             []string{"127.0.0.1"},
		Port:              9042,
		Keyspace:          "docs4go",
		Table:             "documents",
		Consistency:       "QUORUM",
		NumConns:          2,
		Timeout:           5 * time.Second,
		ConnectTimeout:    5 * time.Second,
		ReplicationFactor: 1,
	}
}

// Validate checks if the Cassandra configuration is valid
func (c *Config) Validate() error {
	if len(c.Hosts) == 0 {
		return fmt.Errorf("cassandra requires at least one host")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("cassandra port must be between 1 and 65535, got %d", c.Port)
	}
	if err := store.ValidateAttributeName(c.Keyspace); err != nil {
		return fmt.Errorf("invalid keyspace: %w", err)
	}
	if err := store.ValidateAttributeName(c.Table); err != nil {
		return fmt.Errorf("invalid table: %w", err)
	}
	if _, err := gocql.ParseConsistencyWrapper(c.consistency()); err != nil {
		return fmt.Errorf("invalid consistency %q: %w", c.Consistency, err)
	}
	if c.NumConns < 1 {
		return fmt.Errorf("num_conns must be at least 1")
	}
	if c.CreateSchema && c.ReplicationFactor < 1 {
		return fmt.Errorf("replication_factor must be at least 1 when creating the schema")
	}
	return nil
}

func (c *Config) consistency() string {
	if c.Consistency == "" {
		return "QUORUM"
	}
	return c.Consistency
}

// ClusterConfig builds the gocql cluster configuration.
func (c *Config) ClusterConfig() (*gocql.ClusterConfig, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	consistency, err := gocql.ParseConsistencyWrapper(c.consistency())
	if err != nil {
		return nil, err
	}

	cluster := gocql.NewCluster(c.Hosts...)
	cluster.Port = c.Port
	cluster.Consistency = consistency
	cluster.SerialConsistency = gocql.Serial
	cluster.NumConns = c.NumConns
	if c.Timeout > 0 {
		cluster.Timeout = c.Timeout
	}
	if c.ConnectTimeout > 0 {
		cluster.ConnectTimeout = c.ConnectTimeout
	}
	if c.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: c.Username,
			Password: c.Password,
		}
	}
	return cluster, nil
}

// qualifiedTable returns "keyspace.table".
func (c *Config) qualifiedTable() string {
	return c.Keyspace + "." + c.Table
}
