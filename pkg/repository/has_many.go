package repository

import (
	"context"

	"github.com/ammar0144/docs4go/pkg/store"
)

func (e *Entity) hasMany(ctx context.Context, a *Association, o loadOptions) ([]*Entity, error) {
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

	recs, err := e.repo.store.Query(ctx, store.Query{
		Type:        a.Target,
		Where:       map[string]any{a.ForeignKey: e.id},
		Limit:       o.limit,
		Descending:  o.descending,
		WithDeleted: o.withDeleted,
	})
	if err != nil {
		return nil, err
	}
	list, err := e.repo.hydrateAll(recs)
	if err != nil {
		return nil, err
	}
	for _, child := range list {
		backLink(a, child, e)
	}
	e.refs.putMany(a.Name, key, list)
	return list, nil
}

func (e *Entity) addMember(ctx context.Context, a *Association, value *Entity) error {
	if e.IsNew() {
		return invalidf("add to %s.%s: owner must be saved first", e.Type(), a.Name)
	}

	value.Set(a.ForeignKey, e.id)
	if err := value.Save(ctx, SkipValidation()); err != nil {
		return err
	}
	backLink(a, value, e)
	e.refs.appendAll(a.Name, value)
	return nil
}

func (e *Entity) removeMember(ctx context.Context, a *Association, value *Entity) error {
	if e.IsNew() || value.IsNew() || idOf(value.attrs[a.ForeignKey]) != e.id {
		return invalidf("remove from %s.%s: %s/%s is not a member", e.Type(), a.Name, value.Type(), value.id)
	}

	var err error
	switch a.Cascade {
	case CascadeDestroy:
		err = value.Destroy(ctx)
	case CascadeNullify:
		err = e.repo.nullify(ctx, value, a.ForeignKey)
	}
	if err != nil {
		return err
	}
	e.refs.removeAll(a.Name, value.id)
	return nil
}

func (e *Entity) countHasMany(ctx context.Context, a *Association, o loadOptions) (int, error) {
	if e.IsNew() {
		return 0, nil
	}
	return e.repo.store.Count(ctx, store.Query{
		Type:        a.Target,
		Where:       map[string]any{a.ForeignKey: e.id},
		WithDeleted: o.withDeleted,
	})
}
