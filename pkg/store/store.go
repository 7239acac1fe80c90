// Package store defines the document store contract consumed by the repository
// layer, together with helpers shared by the concrete store implementations.
package store

import (
	"context"
	"time"
)

// Record is a single stored document.
//
// Deleted mirrors the owning type's soft-delete marker. The repository layer
// computes it on every save so that stores can filter on a plain flag without
// knowing which attribute carries the marker.
type Record struct {
	Type       string
	ID         string
	Rev        string
	Seq        int64
	Deleted    bool
	Attributes map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsNew reports whether the record has never been persisted.
func (r *Record) IsNew() bool {
	return r.Rev == ""
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Attributes = CloneAttributes(r.Attributes)
	return &out
}

// Query selects documents of one type by attribute equality.
// A nil value in Where matches documents where the attribute is missing or null.
type Query struct {
	Type        string
	Where       map[string]any
	Limit       int
	Descending  bool
	WithDeleted bool
}

// SaveResult is returned by a successful save.
type SaveResult struct {
	ID  string
	Rev string
}

// Store is the document store client.
//
// Save creates the document when rec.Rev is empty and otherwise performs a
// compare-and-swap on rec.Rev, returning a *ConflictError when the stored
// revision differs and ErrNotFound when the document is gone.
type Store interface {
	Fetch(ctx context.Context, typ, id string, withDeleted bool) (*Record, error)
	Query(ctx context.Context, q Query) ([]*Record, error)
	Count(ctx context.Context, q Query) (int, error)
	Save(ctx context.Context, rec *Record) (SaveResult, error)
	Delete(ctx context.Context, typ, id string) error
}
