package repository

import (
	"context"
	"fmt"
	"time"
)

// softDestroy marks e deleted. Dependents under a destroy policy are destroyed
// through their own Destroy, so soft-deletable ones are only marked as well.
// Dependents under a nullify policy are detached unless they are
// soft-deletable themselves, in which case they keep the link.
func (r *Repository) softDestroy(ctx context.Context, e *Entity) error {
	if err := r.beforeDestroy(ctx, e); err != nil {
		return err
	}

	for _, a := range e.model.associations {
		if a.Shape == ShapeBelongsTo || a.Cascade == CascadeIgnore {
			continue
		}
		deps, fk, err := r.dependents(ctx, e, a, false)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			switch a.Cascade {
			case CascadeDestroy:
				err = dep.Destroy(ctx)
			case CascadeNullify:
				if dep.model.SoftDeletable() {
					continue
				}
				err = r.nullify(ctx, dep, fk)
			}
			if err != nil {
				return fmt.Errorf("cascade %s.%s on %s/%s: %w", e.Type(), a.Name, dep.Type(), dep.id, err)
			}
			r.metrics.cascadeActions.WithLabelValues(dep.Type(), a.Cascade.String()).Inc()
		}
	}

	marker := e.model.SoftDeleteMarker
	prev, had := e.attrs[marker]
	e.Set(marker, time.Now().UTC().Format(time.RFC3339Nano))
	if err := e.Save(ctx, SkipValidation()); err != nil {
		// The entity must stay live so that Destroy can be retried.
		e.Set(marker, prev)
		if !had {
			delete(e.attrs, marker)
		}
		return err
	}
	e.refs.reset()
	r.metrics.softDeletes.WithLabelValues(e.Type()).Inc()
	r.log.Debug("entity soft-deleted", "type", e.Type(), "id", e.id)

	return r.afterDestroy(ctx, e)
}
