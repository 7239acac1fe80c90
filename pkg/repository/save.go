package repository

import (
	"context"
	"time"
)

// SaveOption tunes a single save.
type SaveOption func(*saveOptions)

type saveOptions struct {
	skipValidation bool
}

// SkipValidation saves without running the type's validator.
func SkipValidation() SaveOption {
	return func(o *saveOptions) { o.skipValidation = true }
}

// Save validates and persists the entity. A clean, already persisted entity
// is not written. Write conflicts are merged and retried when conflict
// resolution is enabled for the type.
func (e *Entity) Save(ctx context.Context, opts ...SaveOption) error {
	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}

	if e.destroyed {
		return invalidf("save %s/%s: entity was destroyed", e.Type(), e.id)
	}
	if !e.IsNew() && !e.Dirty() {
		return nil
	}

	e.lastErr = nil
	if !o.skipValidation && e.model.validator != nil {
		if err := e.model.validator.Validate(ctx, e.Type(), e.Attributes()); err != nil {
			verr := &ValidationError{Type: e.Type(), ID: e.id, Err: err}
			e.lastErr = verr
			e.repo.metrics.saves.WithLabelValues(e.Type(), "invalid").Inc()
			return verr
		}
	}

	start := time.Now()
	err := e.repo.persist(ctx, e)
	e.repo.metrics.saveDuration.WithLabelValues(e.Type()).Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := "error"
		if IsConflict(err) {
			outcome = "conflict"
		}
		e.repo.metrics.saves.WithLabelValues(e.Type(), outcome).Inc()
		return err
	}
	e.repo.metrics.saves.WithLabelValues(e.Type(), "ok").Inc()
	return nil
}
