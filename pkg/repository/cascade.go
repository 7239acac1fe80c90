package repository

import (
	"context"
	"fmt"

	"github.com/ammar0144/docs4go/pkg/store"
)

// Destroy removes the entity. Types with soft deletion are marked deleted
// instead, and their dependents are soft-deleted or detached according to
// each association's cascade policy.
func (e *Entity) Destroy(ctx context.Context) error {
	if e.IsNew() {
		return invalidf("destroy %s: entity was never saved", e.Type())
	}
	if e.destroyed {
		return nil
	}
	if !e.model.SoftDeletable() {
		return e.repo.hardDestroy(ctx, e)
	}
	if e.Deleted() {
		return nil
	}
	return e.repo.softDestroy(ctx, e)
}

// ForceDestroy removes the entity from the store even when the type supports
// soft deletion, applying every cascade policy with hard deletes. Destroy
// hooks are skipped for an entity that is already soft-deleted.
func (e *Entity) ForceDestroy(ctx context.Context) error {
	if e.IsNew() {
		return invalidf("destroy %s: entity was never saved", e.Type())
	}
	if e.destroyed {
		return nil
	}
	return e.repo.hardDestroy(ctx, e)
}

func (r *Repository) hardDestroy(ctx context.Context, e *Entity) error {
	runHooks := !e.Deleted()
	if runHooks {
		if err := r.beforeDestroy(ctx, e); err != nil {
			return err
		}
	}

	for _, a := range e.model.associations {
		if a.Shape == ShapeBelongsTo || a.Cascade == CascadeIgnore {
			continue
		}
		deps, fk, err := r.dependents(ctx, e, a, true)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			switch a.Cascade {
			case CascadeDestroy:
				err = dep.ForceDestroy(ctx)
			case CascadeNullify:
				err = r.nullify(ctx, dep, fk)
			}
			if err != nil {
				return fmt.Errorf("cascade %s.%s on %s/%s: %w", e.Type(), a.Name, dep.Type(), dep.id, err)
			}
			r.metrics.cascadeActions.WithLabelValues(dep.Type(), a.Cascade.String()).Inc()
		}
	}

	if err := r.store.Delete(ctx, e.Type(), e.id); err != nil {
		return err
	}
	e.destroyed = true
	e.refs.reset()
	r.metrics.hardDeletes.WithLabelValues(e.Type()).Inc()
	r.log.Debug("entity destroyed", "type", e.Type(), "id", e.id)

	if runHooks {
		return r.afterDestroy(ctx, e)
	}
	return nil
}

// dependents fetches the entities reached through a, together with the
// foreign key that links them to e.
func (r *Repository) dependents(ctx context.Context, e *Entity, a *Association, withDeleted bool) ([]*Entity, string, error) {
	target, fk := a.Target, a.ForeignKey
	if a.Shape == ShapeHasManyThrough {
		via := e.model.byName[a.Through]
		target, fk = via.Target, via.ForeignKey
	}

	recs, err := r.store.Query(ctx, store.Query{
		Type:        target,
		Where:       map[string]any{fk: e.id},
		WithDeleted: withDeleted,
	})
	if err != nil {
		return nil, "", err
	}
	deps, err := r.hydrateAll(recs)
	return deps, fk, err
}

// nullify clears fk on dep and saves it without validation.
func (r *Repository) nullify(ctx context.Context, dep *Entity, fk string) error {
	dep.Set(fk, nil)
	return dep.Save(ctx, SkipValidation())
}

func (r *Repository) beforeDestroy(ctx context.Context, e *Entity) error {
	if e.model.hooks == nil {
		return nil
	}
	if err := e.model.hooks.BeforeDestroy(ctx, e); err != nil {
		return fmt.Errorf("before destroy %s/%s: %w", e.Type(), e.id, err)
	}
	return nil
}

func (r *Repository) afterDestroy(ctx context.Context, e *Entity) error {
	if e.model.hooks == nil {
		return nil
	}
	if err := e.model.hooks.AfterDestroy(ctx, e); err != nil {
		return fmt.Errorf("after destroy %s/%s: %w", e.Type(), e.id, err)
	}
	return nil
}
