package repository

import (
	"errors"
	"fmt"
	"sync"
)

// Model is the registered description of one entity type.
type Model struct {
	Name string
	// SoftDeleteMarker is the attribute set on soft deletion. Empty disables soft deletion.
	SoftDeleteMarker string

	associations       []*Association
	byName             map[string]*Association
	conflictResolution *bool
	validator          Validator
	hooks              DestroyHooks
	protected          map[string]struct{}
	accessible         map[string]struct{}
}

// ModelOption configures a Model during Define.
type ModelOption func(*Model) error

// WithSoftDelete enables soft deletion using marker as the deleted-at attribute.
func WithSoftDelete(marker string) ModelOption {
	return func(m *Model) error {
		if marker == "" {
			return invalidf("%s: soft delete marker is empty", m.Name)
		}
		m.SoftDeleteMarker = marker
		return nil
	}
}

// WithConflictResolution overrides the repository-wide conflict resolution setting.
func WithConflictResolution(enabled bool) ModelOption {
	return func(m *Model) error {
		m.conflictResolution = &enabled
		return nil
	}
}

// WithValidator attaches the validator run before each validated save.
func WithValidator(v Validator) ModelOption {
	return func(m *Model) error {
		m.validator = v
		return nil
	}
}

// WithDestroyHooks attaches callbacks fired around destroy.
func WithDestroyHooks(h DestroyHooks) ModelOption {
	return func(m *Model) error {
		m.hooks = h
		return nil
	}
}

// Protected excludes attributes from mass assignment.
func Protected(attrs ...string) ModelOption {
	return func(m *Model) error {
		for _, a := range attrs {
			m.protected[a] = struct{}{}
		}
		return nil
	}
}

// Accessible restricts mass assignment to the listed attributes.
func Accessible(attrs ...string) ModelOption {
	return func(m *Model) error {
		if m.accessible == nil {
			m.accessible = make(map[string]struct{}, len(attrs))
		}
		for _, a := range attrs {
			m.accessible[a] = struct{}{}
		}
		return nil
	}
}

// Associations returns the declared associations in declaration order.
func (m *Model) Associations() []*Association {
	out := make([]*Association, len(m.associations))
	copy(out, m.associations)
	return out
}

// Association looks up an association by name.
func (m *Model) Association(name string) (*Association, bool) {
	a, ok := m.byName[name]
	return a, ok
}

// SoftDeletable reports whether the type opted into soft deletion.
func (m *Model) SoftDeletable() bool {
	return m.SoftDeleteMarker != ""
}

func (m *Model) assignable(attr string) bool {
	if _, ok := m.protected[attr]; ok {
		return false
	}
	if m.accessible != nil {
		_, ok := m.accessible[attr]
		return ok
	}
	return true
}

func (m *Model) association(name string, shapes ...Shape) (*Association, error) {
	a, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownAssociation, m.Name, name)
	}
	for _, s := range shapes {
		if a.Shape == s {
			return a, nil
		}
	}
	return nil, invalidf("%s.%s is a %s association", m.Name, name, a.Shape)
}

// Registry holds the models known to a repository. Define every type, then
// Compile; a compiled registry is read-only and safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	models   map[string]*Model
	order    []string
	compiled bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

// Define registers a type and its associations.
func (r *Registry) Define(name string, opts ...ModelOption) (*Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.compiled {
		return nil, invalidf("registry is compiled, cannot define %q", name)
	}
	if name == "" {
		return nil, invalidf("type name is empty")
	}
	if _, exists := r.models[name]; exists {
		return nil, invalidf("type %q defined twice", name)
	}

	m := &Model{
		Name:      name,
		byName:    make(map[string]*Association),
		protected: make(map[string]struct{}),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	r.models[name] = m
	r.order = append(r.order, name)
	return m, nil
}

// MustDefine is Define that panics on error, for package-level registration.
func (r *Registry) MustDefine(name string, opts ...ModelOption) *Model {
	m, err := r.Define(name, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Compile resolves cross-type references. Explicitly declared inverses and
// sources that do not resolve are errors; defaulted inverses are dropped.
func (r *Registry) Compile() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.compiled {
		return nil
	}

	var errs []error
	for _, name := range r.order {
		m := r.models[name]
		for _, a := range m.associations {
			if err := r.resolve(m, a); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	r.compiled = true
	return nil
}

// resolve must be called with r.mu held.
func (r *Registry) resolve(m *Model, a *Association) error {
	if a.Shape == ShapeHasManyThrough {
		via := m.byName[a.Through]
		mid, ok := r.models[via.Target]
		if !ok {
			return fmt.Errorf("%w: %s.%s targets %q", ErrUnknownType, m.Name, via.Name, via.Target)
		}
		src, ok := mid.byName[a.Source]
		if !ok || src.Shape == ShapeHasManyThrough {
			return invalidf("%s.%s: source %q is not declared on %s", m.Name, a.Name, a.Source, mid.Name)
		}
		if a.targetExplicit && a.Target != src.Target {
			return fmt.Errorf("%w: %s.%s expects %s, source %s.%s yields %s", ErrTypeMismatch, m.Name, a.Name, a.Target, mid.Name, src.Name, src.Target)
		}
		a.Target = src.Target
		return nil
	}

	target, ok := r.models[a.Target]
	if !ok {
		return fmt.Errorf("%w: %s.%s targets %q", ErrUnknownType, m.Name, a.Name, a.Target)
	}
	if a.Shape == ShapeBelongsTo || a.Inverse == "" {
		return nil
	}

	inv, ok := target.byName[a.Inverse]
	if ok && inv.Shape == ShapeBelongsTo && inv.Target == m.Name && inv.ForeignKey == a.ForeignKey {
		return nil
	}
	if a.inverseExplicit {
		return invalidf("%s.%s: inverse %q is not a belongs_to %s on %s via %s", m.Name, a.Name, a.Inverse, m.Name, target.Name, a.ForeignKey)
	}
	a.Inverse = ""
	return nil
}

// Model returns the model registered under name.
func (r *Registry) Model(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// Models returns the registered type names in definition order.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Compiled reports whether Compile has succeeded.
func (r *Registry) Compiled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.compiled
}

func (r *Registry) lookup(name string) (*Model, error) {
	m, ok := r.Model(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return m, nil
}
