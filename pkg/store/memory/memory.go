// Package memory provides an in-process document store with the same
// revision semantics as the networked stores.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ammar0144/docs4go/pkg/store"
)

// Stats counts the calls made against a Store.
type Stats struct {
	Fetches int64
	Queries int64
	Counts  int64
	Saves   int64
	Deletes int64
}

// Store keeps documents in memory, keyed by type and id.
type Store struct {
	mu   sync.RWMutex
	docs map[string]map[string]*store.Record
	seq  int64

	fetches atomic.Int64
	queries atomic.Int64
	counts  atomic.Int64
	saves   atomic.Int64
	deletes atomic.Int64
}

// New creates an empty store.
func New() *Store {
	return &Store{docs: make(map[string]map[string]*store.Record)}
}

// Fetch returns a copy of the stored document.
func (s *Store) Fetch(ctx context.Context, typ, id string, withDeleted bool) (*store.Record, error) {
	s.fetches.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[typ][id]
	if !ok || (rec.Deleted && !withDeleted) {
		return nil, store.NotFound(typ, id)
	}
	return rec.Clone(), nil
}

// Query returns copies of the matching documents in creation order.
func (s *Store) Query(ctx context.Context, q store.Query) ([]*store.Record, error) {
	s.queries.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := q.Apply(s.snapshot(q.Type))
	out := make([]*store.Record, len(matched))
	for i, rec := range matched {
		out[i] = rec.Clone()
	}
	return out, nil
}

// Count returns the number of matching documents, ignoring q.Limit.
func (s *Store) Count(ctx context.Context, q store.Query) (int, error) {
	s.counts.Add(1)
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	q.Limit = 0
	return len(q.Apply(s.snapshot(q.Type))), nil
}

// Save creates or compare-and-swaps a document.
func (s *Store) Save(ctx context.Context, rec *store.Record) (store.SaveResult, error) {
	s.saves.Add(1)
	if err := ctx.Err(); err != nil {
		return store.SaveResult{}, err
	}

	attrs, err := store.Normalize(rec.Attributes)
	if err != nil {
		return store.SaveResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.docs[rec.Type]
	if byID == nil {
		byID = make(map[string]*store.Record)
		s.docs[rec.Type] = byID
	}

	now := time.Now().UTC()
	if rec.IsNew() {
		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		if existing, ok := byID[id]; ok {
			return store.SaveResult{}, &store.ConflictError{Type: rec.Type, ID: id, Current: existing.Clone()}
		}
		s.seq++
		stored := &store.Record{
			Type:       rec.Type,
			ID:         id,
			Rev:        store.NextRevision("", attrs),
			Seq:        s.seq,
			Deleted:    rec.Deleted,
			Attributes: attrs,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		byID[id] = stored
		return store.SaveResult{ID: id, Rev: stored.Rev}, nil
	}

	existing, ok := byID[rec.ID]
	if !ok {
		return store.SaveResult{}, store.NotFound(rec.Type, rec.ID)
	}
	if existing.Rev != rec.Rev {
		return store.SaveResult{}, &store.ConflictError{
			Type:    rec.Type,
			ID:      rec.ID,
			Rev:     rec.Rev,
			Current: existing.Clone(),
		}
	}
	existing.Rev = store.NextRevision(existing.Rev, attrs)
	existing.Attributes = attrs
	existing.Deleted = rec.Deleted
	existing.UpdatedAt = now
	return store.SaveResult{ID: existing.ID, Rev: existing.Rev}, nil
}

// Delete removes a document regardless of its soft-delete state.
func (s *Store) Delete(ctx context.Context, typ, id string) error {
	s.deletes.Add(1)
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[typ][id]; !ok {
		return store.NotFound(typ, id)
	}
	delete(s.docs[typ], id)
	return nil
}

// Put writes rec verbatim, bypassing revision checks. It is meant for seeding.
func (s *Store) Put(rec *store.Record) error {
	attrs, err := store.Normalize(rec.Attributes)
	if err != nil {
		return err
	}
	if rec.ID == "" {
		return fmt.Errorf("memory: put requires an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.docs[rec.Type]
	if byID == nil {
		byID = make(map[string]*store.Record)
		s.docs[rec.Type] = byID
	}
	stored := rec.Clone()
	stored.Attributes = attrs
	if stored.Rev == "" {
		stored.Rev = store.NextRevision("", attrs)
	}
	if prev, ok := byID[rec.ID]; ok {
		stored.Seq = prev.Seq
	} else {
		s.seq++
		stored.Seq = s.seq
	}
	byID[rec.ID] = stored
	return nil
}

// Len returns the number of documents of typ, soft-deleted ones included.
func (s *Store) Len(typ string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[typ])
}

// Stats returns the call counters.
func (s *Store) Stats() Stats {
	return Stats{
		Fetches: s.fetches.Load(),
		Queries: s.queries.Load(),
		Counts:  s.counts.Load(),
		Saves:   s.saves.Load(),
		Deletes: s.deletes.Load(),
	}
}

// ResetStats zeroes the call counters.
func (s *Store) ResetStats() {
	s.fetches.Store(0)
	s.queries.Store(0)
	s.counts.Store(0)
	s.saves.Store(0)
	s.deletes.Store(0)
}

// snapshot must be called with s.mu held.
func (s *Store) snapshot(typ string) []*store.Record {
	byID := s.docs[typ]
	out := make([]*store.Record, 0, len(byID))
	for _, rec := range byID {
		out = append(out, rec)
	}
	return out
}
