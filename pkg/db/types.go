package db

import (
	"time"

	"gorm.io/gorm"
)

// DefaultTable is the table holding every document.
const DefaultTable = "documents"

// Config holds MySQL/GORM document store configuration
type Config struct {
	// Connection Settings
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Database string `json:"database" yaml:"database"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`

	// Connection Pool Settings
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time"`

	// MySQL Specific Settings
	Collation string `json:"collation" yaml:"collation"` // Default: utf8mb4_unicode_ci
	TimeZone  string `json:"timezone" yaml:"timezone"`   // Default: UTC

	// Document Settings
	Table        string        `json:"table" yaml:"table"` // Default: documents
	QueryTimeout time.Duration `json:"query_timeout" yaml:"query_timeout"`
	PrepareStmt  bool          `json:"prepare_stmt" yaml:"prepare_stmt"`
	AutoMigrate  bool          `json:"auto_migrate" yaml:"auto_migrate"` // apply embedded migrations on open

	// SSL Configuration
	SSL SSLConfig `json:"ssl" yaml:"ssl"`

	// Logging Configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SSLConfig holds SSL/TLS configuration for MySQL
type SSLConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	CertFile   string `json:"cert_file" yaml:"cert_file"`
	KeyFile    string `json:"key_file" yaml:"key_file"`
	CAFile     string `json:"ca_file" yaml:"ca_file"`
	SkipVerify bool   `json:"skip_verify" yaml:"skip_verify"` // Not recommended for production
	ServerName string `json:"server_name" yaml:"server_name"`
}

// LoggingConfig controls GORM logging
type LoggingConfig struct {
	Level              string        `json:"level" yaml:"level"` // silent, error, warn, info
	SlowQueryThreshold time.Duration `json:"slow_query_threshold" yaml:"slow_query_threshold"`
}

// Document is the row layout of the documents table.
// Seq orders documents by creation.
type Document struct {
	Seq       int64     `gorm:"column:seq;primaryKey;autoIncrement"`
	Type      string    `gorm:"column:type;size:128;not null;uniqueIndex:idx_documents_type_id,priority:1"`
	ID        string    `gorm:"column:id;size:64;not null;uniqueIndex:idx_documents_type_id,priority:2"`
	Rev       string    `gorm:"column:rev;size:64;not null"`
	Deleted   bool      `gorm:"column:deleted;not null;default:false"`
	Body      string    `gorm:"column:body;type:json;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// Manager manages database connections
type Manager struct {
	config *Config
	db     *gorm.DB
}
