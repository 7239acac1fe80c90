package repository

import (
	"context"

	"github.com/ammar0144/docs4go/pkg/store"
)

// belongsTo resolves the entity whose id is held in a.ForeignKey. An unset
// key resolves to nil without touching the store. A target that is missing
// or hidden stays ErrNotFound until the key changes or ForceReload is given.
func (e *Entity) belongsTo(ctx context.Context, a *Association, o loadOptions) (*Entity, error) {
	id := idOf(e.attrs[a.ForeignKey])
	if id == "" {
		return nil, nil
	}

	key := o.fingerprint()
	if !o.forceReload {
		if missing, ok := e.refs.getMissing(a.Name, key); ok && missing == id {
			e.repo.metrics.recordCacheLookup(e.Type(), a.Name, true)
			return nil, store.NotFound(a.Target, id)
		}
	}
	if v, ok := e.cached(a, key, o); ok && (v == nil || v.id == id) {
		return v, nil
	}

	rec, err := e.repo.store.Fetch(ctx, a.Target, id, o.withDeleted)
	if IsNotFound(err) {
		e.refs.putMissing(a.Name, key, id)
	}
	if err != nil {
		return nil, err
	}
	target, err := e.repo.hydrate(rec)
	if err != nil {
		return nil, err
	}
	e.refs.putSingle(a.Name, key, target)
	return target, nil
}

func (e *Entity) linkBelongsTo(a *Association, value *Entity) error {
	if value == nil {
		e.Set(a.ForeignKey, nil)
		e.refs.putSingle(a.Name, allKey, nil)
		return nil
	}
	if value.IsNew() {
		return invalidf("link %s.%s: %s must be saved first", e.Type(), a.Name, value.Type())
	}

	e.Set(a.ForeignKey, value.id)
	e.refs.dropSingle(a.Name)
	e.refs.putSingle(a.Name, allKey, value)
	return nil
}
