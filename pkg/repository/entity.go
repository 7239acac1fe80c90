package repository

import (
	"context"
	"sort"

	"github.com/ammar0144/docs4go/pkg/store"
)

// Entity is an identified document of a registered type together with its
// dirty-attribute tracking and reference cache. An Entity must not be shared
// between goroutines without external synchronization.
type Entity struct {
	repo  *Repository
	model *Model

	id  string
	rev string

	attrs  map[string]any
	loaded map[string]any
	dirty  map[string]struct{}

	refs      *refCache
	lastErr   error
	destroyed bool
}

func newEntity(r *Repository, m *Model) *Entity {
	return &Entity{
		repo:   r,
		model:  m,
		attrs:  map[string]any{},
		loaded: map[string]any{},
		dirty:  map[string]struct{}{},
		refs:   newRefCache(),
	}
}

// load replaces the entity state with rec and forgets every cached reference.
func (e *Entity) load(rec *store.Record) {
	e.id = rec.ID
	e.rev = rec.Rev
	e.attrs = store.CloneAttributes(rec.Attributes)
	e.loaded = store.CloneAttributes(rec.Attributes)
	e.dirty = map[string]struct{}{}
	e.refs.reset()
	e.destroyed = false
}

// Type returns the registered type name.
func (e *Entity) Type() string { return e.model.Name }

// Model returns the type description.
func (e *Entity) Model() *Model { return e.model }

// ID returns the store-assigned id, empty until the first save.
func (e *Entity) ID() string { return e.id }

// Rev returns the revision the entity was last loaded or saved at.
func (e *Entity) Rev() string { return e.rev }

// IsNew reports whether the entity has never been saved.
func (e *Entity) IsNew() bool { return e.rev == "" }

// Destroyed reports whether the entity was removed from the store.
func (e *Entity) Destroyed() bool { return e.destroyed }

// Attr returns the value of an attribute, nil when unset.
func (e *Entity) Attr(name string) any {
	return e.attrs[name]
}

// String returns a string attribute, or "" when it is unset or not a string.
func (e *Entity) String(name string) string {
	s, _ := e.attrs[name].(string)
	return s
}

// Attributes returns a copy of all attributes.
func (e *Entity) Attributes() map[string]any {
	return store.CloneAttributes(e.attrs)
}

// Set assigns an attribute. The attribute is dirty while its value differs
// from the one last loaded or saved.
func (e *Entity) Set(name string, value any) {
	prev, had := e.attrs[name]
	e.attrs[name] = value

	if store.Equal(value, e.loaded[name]) {
		delete(e.dirty, name)
	} else {
		e.dirty[name] = struct{}{}
	}

	if had && store.Equal(prev, value) {
		return
	}
	for _, a := range e.model.associations {
		if a.Shape == ShapeBelongsTo && a.ForeignKey == name {
			e.refs.dropSingle(a.Name)
		}
	}
}

// Assign sets every attribute in attrs that the type allows to be mass assigned.
func (e *Entity) Assign(attrs map[string]any) {
	for _, name := range sortedKeys(attrs) {
		if e.model.assignable(name) {
			e.Set(name, attrs[name])
		}
	}
}

// UpdateAttributes assigns attrs and saves.
func (e *Entity) UpdateAttributes(ctx context.Context, attrs map[string]any, opts ...SaveOption) error {
	e.Assign(attrs)
	return e.Save(ctx, opts...)
}

// Dirty reports whether any attribute changed since the last load or save.
func (e *Entity) Dirty() bool {
	return len(e.dirty) > 0
}

// Changed reports whether name changed since the last load or save.
func (e *Entity) Changed(name string) bool {
	_, ok := e.dirty[name]
	return ok
}

// ChangedAttributes lists the dirty attributes in name order.
func (e *Entity) ChangedAttributes() []string {
	out := make([]string, 0, len(e.dirty))
	for name := range e.dirty {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Deleted reports whether the soft-delete marker is set.
func (e *Entity) Deleted() bool {
	if !e.model.SoftDeletable() {
		return false
	}
	switch v := e.attrs[e.model.SoftDeleteMarker].(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	default:
		return true
	}
}

// Errors returns the validation error of the last save, if it was rejected.
func (e *Entity) Errors() error {
	return e.lastErr
}

// Reload refetches the entity, soft-deleted or not, discarding local changes
// and every cached reference.
func (e *Entity) Reload(ctx context.Context) error {
	if e.IsNew() {
		return invalidf("reload %s: entity was never saved", e.Type())
	}
	rec, err := e.repo.store.Fetch(ctx, e.Type(), e.id, true)
	if err != nil {
		return err
	}
	e.load(rec)
	return nil
}

// record builds the document to save.
func (e *Entity) record() *store.Record {
	return &store.Record{
		Type:       e.Type(),
		ID:         e.id,
		Rev:        e.rev,
		Deleted:    e.Deleted(),
		Attributes: store.CloneAttributes(e.attrs),
	}
}

// commit adopts a successful save result.
func (e *Entity) commit(res store.SaveResult) {
	e.id = res.ID
	e.rev = res.Rev
	e.loaded = store.CloneAttributes(e.attrs)
	e.dirty = map[string]struct{}{}
}

// merge overlays the locally dirty attributes onto remote and adopts its revision.
func (e *Entity) merge(remote *store.Record) {
	merged := store.CloneAttributes(remote.Attributes)
	for name := range e.dirty {
		if v, ok := e.attrs[name]; ok {
			merged[name] = v
		} else {
			delete(merged, name)
		}
	}
	e.attrs = merged
	e.loaded = store.CloneAttributes(remote.Attributes)
	e.rev = remote.Rev
}

func sortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
