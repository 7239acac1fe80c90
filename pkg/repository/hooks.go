package repository

import "context"

// Validator checks an entity's attributes before a validated save.
// A non-nil error rejects the save.
type Validator interface {
	Validate(ctx context.Context, typ string, attrs map[string]any) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, typ string, attrs map[string]any) error

// Validate calls f.
func (f ValidatorFunc) Validate(ctx context.Context, typ string, attrs map[string]any) error {
	return f(ctx, typ, attrs)
}

// DestroyHooks receives callbacks around destroy. An error from BeforeDestroy
// aborts the destroy.
type DestroyHooks interface {
	BeforeDestroy(ctx context.Context, e *Entity) error
	AfterDestroy(ctx context.Context, e *Entity) error
}

// DestroyHookFuncs implements DestroyHooks with optional functions.
type DestroyHookFuncs struct {
	Before func(ctx context.Context, e *Entity) error
	After  func(ctx context.Context, e *Entity) error
}

// BeforeDestroy calls h.Before when set.
func (h DestroyHookFuncs) BeforeDestroy(ctx context.Context, e *Entity) error {
	if h.Before == nil {
		return nil
	}
	return h.Before(ctx, e)
}

// AfterDestroy calls h.After when set.
func (h DestroyHookFuncs) AfterDestroy(ctx context.Context, e *Entity) error {
	if h.After == nil {
		return nil
	}
	return h.After(ctx, e)
}
