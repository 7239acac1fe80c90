package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ammar0144/docs4go/pkg/store"
)

// persist writes e, merging and retrying on write conflicts.
//
// On a conflict the remote document is refetched, every attribute the local
// writer left untouched takes the remote value, the remote revision is adopted
// and the save is retried. When the last attempt still conflicts, the first
// conflict error is returned. Any other error is returned as is.
func (r *Repository) persist(ctx context.Context, e *Entity) error {
	attempts := 1
	if r.conflictResolution(e.model) {
		attempts = r.config.ConflictAttempts
	}

	var firstConflict error
	for attempt := 1; ; attempt++ {
		res, err := r.store.Save(ctx, e.record())
		if err == nil {
			e.commit(res)
			if attempt > 1 {
				r.log.Debug("conflict resolved", "type", e.Type(), "id", e.id, "attempt", attempt)
			}
			return nil
		}
		if !store.IsConflict(err) {
			return err
		}

		r.metrics.conflicts.WithLabelValues(e.Type()).Inc()
		if firstConflict == nil {
			firstConflict = err
		}
		if attempt >= attempts {
			if attempts > 1 {
				r.metrics.exhausted.WithLabelValues(e.Type()).Inc()
				r.log.Warn("conflict retries exhausted", "type", e.Type(), "id", e.id, "attempts", attempts)
			}
			return firstConflict
		}

		remote, err := r.remoteState(ctx, e, err)
		if err != nil {
			return fmt.Errorf("failed to fetch %s/%s for conflict merge: %w", e.Type(), e.id, err)
		}
		r.log.Debug("merging write conflict",
			"type", e.Type(), "id", e.id,
			"local_rev", e.rev, "remote_rev", remote.Rev,
			"changed", e.ChangedAttributes())
		e.merge(remote)
		r.metrics.merges.WithLabelValues(e.Type()).Inc()
	}
}

// remoteState returns the stored document carried by a conflict error, or refetches it.
func (r *Repository) remoteState(ctx context.Context, e *Entity, conflict error) (*store.Record, error) {
	var ce *store.ConflictError
	if errors.As(conflict, &ce) && ce.Current != nil {
		return ce.Current, nil
	}
	return r.store.Fetch(ctx, e.Type(), e.id, true)
}
