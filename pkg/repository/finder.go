package repository

import (
	"context"
	"fmt"

	"github.com/ammar0144/docs4go/pkg/store"
)

// Find loads the entity of typ with id. Soft-deleted entities are reported as
// ErrNotFound unless WithDeleted is given.
func (r *Repository) Find(ctx context.Context, typ, id string, opts ...LoadOption) (*Entity, error) {
	o := collectOptions(opts)
	if err := o.check("find", findOptions); err != nil {
		return nil, err
	}
	if _, err := r.registry.lookup(typ); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, invalidf("find %s: empty id", typ)
	}

	rec, err := r.store.Fetch(ctx, typ, id, o.withDeleted)
	if err != nil {
		return nil, err
	}
	return r.hydrate(rec)
}

// All lists entities of typ in creation order.
func (r *Repository) All(ctx context.Context, typ string, opts ...LoadOption) ([]*Entity, error) {
	return r.FindAllBy(ctx, typ, nil, opts...)
}

// First returns the earliest created entity of typ.
func (r *Repository) First(ctx context.Context, typ string, opts ...LoadOption) (*Entity, error) {
	return r.firstBy(ctx, typ, nil, opts)
}

// FindBy returns the first entity of typ whose attr equals value.
func (r *Repository) FindBy(ctx context.Context, typ, attr string, value any, opts ...LoadOption) (*Entity, error) {
	return r.firstBy(ctx, typ, map[string]any{attr: value}, opts)
}

// FindAllBy lists entities of typ matching every condition in where.
func (r *Repository) FindAllBy(ctx context.Context, typ string, where map[string]any, opts ...LoadOption) ([]*Entity, error) {
	o := collectOptions(opts)
	if err := o.check("find_all", listOptions); err != nil {
		return nil, err
	}
	if _, err := r.registry.lookup(typ); err != nil {
		return nil, err
	}

	recs, err := r.store.Query(ctx, store.Query{
		Type:        typ,
		Where:       where,
		Limit:       o.limit,
		Descending:  o.descending,
		WithDeleted: o.withDeleted,
	})
	if err != nil {
		return nil, err
	}
	return r.hydrateAll(recs)
}

// Count counts the entities of typ.
func (r *Repository) Count(ctx context.Context, typ string, opts ...LoadOption) (int, error) {
	return r.CountBy(ctx, typ, nil, opts...)
}

// CountBy counts the entities of typ matching where.
func (r *Repository) CountBy(ctx context.Context, typ string, where map[string]any, opts ...LoadOption) (int, error) {
	o := collectOptions(opts)
	if err := o.check("count", findOptions); err != nil {
		return 0, err
	}
	if _, err := r.registry.lookup(typ); err != nil {
		return 0, err
	}
	return r.store.Count(ctx, store.Query{Type: typ, Where: where, WithDeleted: o.withDeleted})
}

func (r *Repository) firstBy(ctx context.Context, typ string, where map[string]any, opts []LoadOption) (*Entity, error) {
	list, err := r.FindAllBy(ctx, typ, where, append(opts, Limit(1))...)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: no %s matches %v", ErrNotFound, typ, where)
	}
	return list[0], nil
}
