package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ammar0144/docs4go/pkg/store"
)

// DefaultConflictAttempts is the number of save attempts made when automatic
// conflict resolution is enabled.
const DefaultConflictAttempts = 3

// Config controls repository behaviour.
type Config struct {
	AutoConflictResolution bool `json:"auto_conflict_resolution" yaml:"auto_conflict_resolution"`
	ConflictAttempts       int  `json:"conflict_attempts" yaml:"conflict_attempts"`

	Logger     *slog.Logger          `json:"-" yaml:"-"`
	Registerer prometheus.Registerer `json:"-" yaml:"-"`
}

// DefaultConfig returns a configuration with conflict resolution enabled.
func DefaultConfig() Config {
	return Config{
		AutoConflictResolution: true,
		ConflictAttempts:       DefaultConflictAttempts,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ConflictAttempts < 0 {
		return fmt.Errorf("conflict_attempts must be >= 0, got %d", c.ConflictAttempts)
	}
	return nil
}

// Repository maps entities onto a document store.
// It is safe for concurrent use; the entities it returns are not.
type Repository struct {
	store    store.Store
	registry *Registry
	config   Config
	log      *slog.Logger
	metrics  *Metrics
}

// New creates a repository over s. The registry is compiled if it is not already.
func New(s store.Store, registry *Registry, config Config) (*Repository, error) {
	if s == nil {
		return nil, fmt.Errorf("repository: store is nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("repository: registry is nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid repository config: %w", err)
	}
	if config.ConflictAttempts == 0 {
		config.ConflictAttempts = DefaultConflictAttempts
	}
	if err := registry.Compile(); err != nil {
		return nil, fmt.Errorf("failed to compile registry: %w", err)
	}

	log := config.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Repository{
		store:    s,
		registry: registry,
		config:   config,
		log:      log.With("component", "repository"),
		metrics:  NewMetrics(config.Registerer),
	}, nil
}

// Registry returns the compiled registry.
func (r *Repository) Registry() *Registry {
	return r.registry
}

// Store returns the underlying document store.
func (r *Repository) Store() store.Store {
	return r.store
}

// NewEntity returns an unsaved entity of typ.
func (r *Repository) NewEntity(typ string) (*Entity, error) {
	m, err := r.registry.lookup(typ)
	if err != nil {
		return nil, err
	}
	return newEntity(r, m), nil
}

// Create mass-assigns attrs to a new entity of typ and saves it.
func (r *Repository) Create(ctx context.Context, typ string, attrs map[string]any, opts ...SaveOption) (*Entity, error) {
	e, err := r.NewEntity(typ)
	if err != nil {
		return nil, err
	}
	e.Assign(attrs)
	if err := e.Save(ctx, opts...); err != nil {
		return e, err
	}
	return e, nil
}

// hydrate wraps a stored record in an entity.
func (r *Repository) hydrate(rec *store.Record) (*Entity, error) {
	m, err := r.registry.lookup(rec.Type)
	if err != nil {
		return nil, err
	}
	e := newEntity(r, m)
	e.load(rec)
	return e, nil
}

func (r *Repository) hydrateAll(recs []*store.Record) ([]*Entity, error) {
	out := make([]*Entity, 0, len(recs))
	for _, rec := range recs {
		e, err := r.hydrate(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *Repository) conflictResolution(m *Model) bool {
	if m.conflictResolution != nil {
		return *m.conflictResolution
	}
	return r.config.AutoConflictResolution
}
