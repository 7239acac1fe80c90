package repository

import (
	"context"
	"fmt"
)

// Ref reads a belongs_to or has_one association. A nil entity with a nil
// error means the reference is unset.
func (e *Entity) Ref(ctx context.Context, name string, opts ...LoadOption) (*Entity, error) {
	a, err := e.model.association(name, ShapeBelongsTo, ShapeHasOne)
	if err != nil {
		return nil, err
	}
	o := collectOptions(opts)
	if err := o.check(name, singleOptions); err != nil {
		return nil, err
	}
	return e.single(ctx, a, o)
}

// Link assigns a belongs_to or has_one association; nil clears it.
// A belongs_to link only changes the foreign key, which is persisted by the
// next Save. A has_one link writes the dependents immediately.
func (e *Entity) Link(ctx context.Context, name string, value *Entity) error {
	a, err := e.model.association(name, ShapeBelongsTo, ShapeHasOne)
	if err != nil {
		return err
	}
	if err := checkTarget(a, value); err != nil {
		return err
	}
	if a.Shape == ShapeBelongsTo {
		return e.linkBelongsTo(a, value)
	}
	return e.linkHasOne(ctx, a, value)
}

// Collection reads a has_many or has_many_through association.
func (e *Entity) Collection(ctx context.Context, name string, opts ...LoadOption) ([]*Entity, error) {
	a, err := e.model.association(name, ShapeHasMany, ShapeHasManyThrough)
	if err != nil {
		return nil, err
	}
	o := collectOptions(opts)
	if a.Shape == ShapeHasManyThrough {
		if err := o.check(name, throughOptions); err != nil {
			return nil, err
		}
		return e.through(ctx, a, o)
	}
	if err := o.check(name, manyOptions); err != nil {
		return nil, err
	}
	return e.hasMany(ctx, a, o)
}

// Add attaches value to a has_many association and saves it without validation.
func (e *Entity) Add(ctx context.Context, name string, value *Entity) error {
	a, err := e.model.association(name, ShapeHasMany)
	if err != nil {
		return err
	}
	if value == nil {
		return invalidf("add to %s.%s: nil entity", e.Type(), name)
	}
	if err := checkTarget(a, value); err != nil {
		return err
	}
	return e.addMember(ctx, a, value)
}

// Remove detaches value from a has_many association according to its cascade policy.
func (e *Entity) Remove(ctx context.Context, name string, value *Entity) error {
	a, err := e.model.association(name, ShapeHasMany)
	if err != nil {
		return err
	}
	if value == nil {
		return invalidf("remove from %s.%s: nil entity", e.Type(), name)
	}
	if err := checkTarget(a, value); err != nil {
		return err
	}
	return e.removeMember(ctx, a, value)
}

// RemoveAll reloads a has_many association and removes every member.
func (e *Entity) RemoveAll(ctx context.Context, name string) error {
	a, err := e.model.association(name, ShapeHasMany)
	if err != nil {
		return err
	}
	members, err := e.hasMany(ctx, a, loadOptions{forceReload: true})
	if err != nil {
		return err
	}
	for _, m := range members {
		if err := e.removeMember(ctx, a, m); err != nil {
			return err
		}
	}
	return nil
}

// Count counts a has_many or has_many_through association. The result is
// cached until ForceReload is given.
func (e *Entity) Count(ctx context.Context, name string, opts ...LoadOption) (int, error) {
	a, err := e.model.association(name, ShapeHasMany, ShapeHasManyThrough)
	if err != nil {
		return 0, err
	}
	o := collectOptions(opts)
	if err := o.check(name+" count", countOptions); err != nil {
		return 0, err
	}

	key := o.fingerprint()
	if !o.forceReload {
		if n, ok := e.refs.getCount(a.Name, key); ok {
			return n, nil
		}
	}

	var n int
	if a.Shape == ShapeHasManyThrough {
		n, err = e.countThrough(ctx, a, o)
	} else {
		n, err = e.countHasMany(ctx, a, o)
	}
	if err != nil {
		return 0, err
	}
	e.refs.putCount(a.Name, key, n)
	return n, nil
}

func (e *Entity) single(ctx context.Context, a *Association, o loadOptions) (*Entity, error) {
	if a.Shape == ShapeBelongsTo {
		return e.belongsTo(ctx, a, o)
	}
	return e.hasOne(ctx, a, o)
}

func (e *Entity) cached(a *Association, key string, o loadOptions) (*Entity, bool) {
	if o.forceReload {
		return nil, false
	}
	v, ok := e.refs.getSingle(a.Name, key)
	e.repo.metrics.recordCacheLookup(e.Type(), a.Name, ok)
	return v, ok
}

// backLink records owner as the inverse reference of child.
func backLink(a *Association, child, owner *Entity) {
	if a.Inverse == "" || child == nil {
		return
	}
	child.refs.putSingle(a.Inverse, allKey, owner)
}

func checkTarget(a *Association, value *Entity) error {
	if value == nil || value.Type() == a.Target {
		return nil
	}
	return fmt.Errorf("%w: %s.%s expects %s, got %s", ErrTypeMismatch, a.Owner, a.Name, a.Target, value.Type())
}

// idOf renders a foreign key value as an id. Empty strings count as unset.
func idOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
