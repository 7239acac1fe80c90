package repository

import (
	"context"
)

// Finder defines the lookup paths of a repository. Every path hides
// soft-deleted entities unless WithDeleted is given.
type Finder interface {
	// Single lookups
	Find(ctx context.Context, typ, id string, opts ...LoadOption) (*Entity, error)
	First(ctx context.Context, typ string, opts ...LoadOption) (*Entity, error)
	FindBy(ctx context.Context, typ, attr string, value any, opts ...LoadOption) (*Entity, error)

	// Lists
	All(ctx context.Context, typ string, opts ...LoadOption) ([]*Entity, error)
	FindAllBy(ctx context.Context, typ string, where map[string]any, opts ...LoadOption) ([]*Entity, error)

	// Counts
	Count(ctx context.Context, typ string, opts ...LoadOption) (int, error)
	CountBy(ctx context.Context, typ string, where map[string]any, opts ...LoadOption) (int, error)
}

// Writer creates entities.
type Writer interface {
	NewEntity(typ string) (*Entity, error)
	Create(ctx context.Context, typ string, attrs map[string]any, opts ...SaveOption) (*Entity, error)
}

var (
	_ Finder = (*Repository)(nil)
	_ Writer = (*Repository)(nil)
)
