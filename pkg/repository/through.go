package repository

import "context"

// through resolves the far side of a has_many_through association by reading
// the intermediate collection and following each member's source association.
// Far-side entities reached more than once are returned once, in first-seen order.
func (e *Entity) through(ctx context.Context, a *Association, o loadOptions) ([]*Entity, error) {
	if e.IsNew() {
		return []*Entity{}, nil
	}

	key := o.fingerprint()
	if !o.forceReload {
		list, ok := e.refs.getMany(a.Name, key)
		e.repo.metrics.recordCacheLookup(e.Type(), a.Name, ok)
		if ok {
			return list, nil
		}
	}

	via := e.model.byName[a.Through]
	mids, err := e.hasMany(ctx, via, loadOptions{
		forceReload: o.forceReload,
		withDeleted: o.withDeleted,
		limit:       o.limit,
	})
	if err != nil {
		return nil, err
	}

	farOpts := loadOptions{forceReload: o.forceReload, withDeleted: o.withDeleted}
	seen := make(map[string]struct{})
	out := make([]*Entity, 0, len(mids))
	for _, mid := range mids {
		far, err := mid.sourceEntities(ctx, a.Source, farOpts)
		if err != nil {
			return nil, err
		}
		for _, f := range far {
			if _, dup := seen[f.id]; dup {
				continue
			}
			seen[f.id] = struct{}{}
			out = append(out, f)
		}
	}

	e.refs.putMany(a.Name, key, out)
	return out, nil
}

// sourceEntities follows the named association of an intermediate entity.
// Dangling or hidden references are skipped.
func (e *Entity) sourceEntities(ctx context.Context, name string, o loadOptions) ([]*Entity, error) {
	src := e.model.byName[name]
	if src.Shape == ShapeHasMany {
		return e.hasMany(ctx, src, o)
	}

	far, err := e.single(ctx, src, o)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if far == nil {
		return nil, nil
	}
	return []*Entity{far}, nil
}

// countThrough counts the distinct far-side entities.
func (e *Entity) countThrough(ctx context.Context, a *Association, o loadOptions) (int, error) {
	list, err := e.through(ctx, a, loadOptions{forceReload: o.forceReload, withDeleted: o.withDeleted})
	if err != nil {
		return 0, err
	}
	return len(list), nil
}
