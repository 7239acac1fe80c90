// Package docs4go maps entities and their associations onto document stores,
// with cascading deletes, soft deletion and automatic merging of write conflicts.
package docs4go

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ammar0144/docs4go/pkg/config"
	"github.com/ammar0144/docs4go/pkg/repository"
	"github.com/ammar0144/docs4go/pkg/store"
)

// Config represents the root configuration
type Config = config.Config

// Registry holds entity type declarations
type Registry = repository.Registry

// Repository loads and saves entities
type Repository = repository.Repository

// Entity is a loaded or new document with its association caches
type Entity = repository.Entity

// Store is the document store contract
type Store = store.Store

// LoadConfig reads a YAML config file (optional) and DOCS4GO_ environment overrides
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return repository.NewRegistry()
}

// NewRepository creates a repository over an already opened store
func NewRepository(s Store, registry *Registry, cfg repository.Config) (*Repository, error) {
	return repository.New(s, registry, cfg)
}

// Client is a repository bound to the backend connections it was opened with
type Client struct {
	*Repository

	backend *config.Backend
}

// Open connects the configured store and builds a repository over it.
// reg may be nil to skip metrics registration.
func Open(ctx context.Context, cfg *Config, registry *Registry, reg prometheus.Registerer) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	log := cfg.Logger()

	backend, err := cfg.Open(ctx, log, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	repo, err := repository.New(backend.Store, registry, cfg.RepositoryConfig(log, reg))
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	return &Client{Repository: repo, backend: backend}, nil
}

// Close releases the backend connections
func (c *Client) Close() error {
	return c.backend.Close()
}
