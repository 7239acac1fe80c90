package repository

import (
	"context"

	"github.com/ammar0144/docs4go/pkg/store"
)

func (e *Entity) hasOne(ctx context.Context, a *Association, o loadOptions) (*Entity, error) {
	if e.IsNew() {
		return nil, nil
	}

	key := o.fingerprint()
	if v, ok := e.cached(a, key, o); ok {
		return v, nil
	}

	recs, err := e.repo.store.Query(ctx, store.Query{
		Type:        a.Target,
		Where:       map[string]any{a.ForeignKey: e.id},
		Limit:       1,
		WithDeleted: o.withDeleted,
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		e.refs.putSingle(a.Name, key, nil)
		return nil, nil
	}

	target, err := e.repo.hydrate(recs[0])
	if err != nil {
		return nil, err
	}
	backLink(a, target, e)
	e.refs.putSingle(a.Name, key, target)
	return target, nil
}

// linkHasOne replaces the current dependent with value. The previous
// dependent is destroyed under a destroy policy and detached otherwise.
func (e *Entity) linkHasOne(ctx context.Context, a *Association, value *Entity) error {
	if e.IsNew() {
		return invalidf("link %s.%s: owner must be saved first", e.Type(), a.Name)
	}

	prev, err := e.hasOne(ctx, a, loadOptions{forceReload: true})
	if err != nil {
		return err
	}
	if prev != nil && (value == nil || prev.id != value.id) {
		if a.Cascade == CascadeDestroy {
			err = prev.Destroy(ctx)
		} else {
			err = e.repo.nullify(ctx, prev, a.ForeignKey)
		}
		if err != nil {
			return err
		}
	}

	if value != nil {
		value.Set(a.ForeignKey, e.id)
		if err := value.Save(ctx, SkipValidation()); err != nil {
			return err
		}
		backLink(a, value, e)
	}

	e.refs.dropSingle(a.Name)
	e.refs.putSingle(a.Name, allKey, value)
	return nil
}
