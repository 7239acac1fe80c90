package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/ammar0144/docs4go/pkg/store"
)

// CachedStore is a read-through cache in front of another store.Store.
//
// Documents are cached by type and id, including soft-deleted ones, and
// missing documents are remembered for NullCacheTTL. Query and count results
// are cached per type and dropped on any write to that type. Cache failures
// are logged and never fail the call.
type CachedStore struct {
	next  store.Store
	cache *Manager
	log   *slog.Logger
}

var _ store.Store = (*CachedStore)(nil)

// NewCachedStore wraps next with cache.
func NewCachedStore(next store.Store, cache *Manager) *CachedStore {
	return &CachedStore{
		next:  next,
		cache: cache,
		log:   cache.log,
	}
}

// cachedRecord is the msgpack form of a store.Record. Attributes stay JSON so
// cached documents decode exactly like stored ones.
type cachedRecord struct {
	Missing   bool      `msgpack:"missing,omitempty"`
	Type      string    `msgpack:"type"`
	ID        string    `msgpack:"id"`
	Rev       string    `msgpack:"rev"`
	Seq       int64     `msgpack:"seq"`
	Deleted   bool      `msgpack:"deleted"`
	Body      []byte    `msgpack:"body"`
	CreatedAt time.Time `msgpack:"created_at"`
	UpdatedAt time.Time `msgpack:"updated_at"`
}

func newCachedRecord(rec *store.Record) (cachedRecord, error) {
	body, err := json.Marshal(rec.Attributes)
	if err != nil {
		return cachedRecord{}, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return cachedRecord{
		Type:      rec.Type,
		ID:        rec.ID,
		Rev:       rec.Rev,
		Seq:       rec.Seq,
		Deleted:   rec.Deleted,
		Body:      body,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

func (c cachedRecord) record() (*store.Record, error) {
	attrs := map[string]any{}
	if len(c.Body) > 0 {
		if err := json.Unmarshal(c.Body, &attrs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
		}
	}
	return &store.Record{
		Type:       c.Type,
		ID:         c.ID,
		Rev:        c.Rev,
		Seq:        c.Seq,
		Deleted:    c.Deleted,
		Attributes: attrs,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}, nil
}

func (s *CachedStore) docKey(typ, id string) string {
	return s.cache.Key("doc", typ, id)
}

// Fetch serves the document from cache, loading and caching it on a miss.
func (s *CachedStore) Fetch(ctx context.Context, typ, id string, withDeleted bool) (*store.Record, error) {
	if !s.cache.Enabled() {
		return s.next.Fetch(ctx, typ, id, withDeleted)
	}

	key := s.docKey(typ, id)
	var cached cachedRecord
	err := s.cache.GetValue(ctx, key, &cached)
	if err == nil {
		if cached.Missing {
			return nil, store.NotFound(typ, id)
		}
		rec, err := cached.record()
		if err == nil {
			return visible(rec, withDeleted)
		}
		s.warn(ctx, "undecodable cached document", key, err)
	} else if !IsKeyNotFound(err) {
		s.warn(ctx, "cache read failed", key, err)
	}

	rec, err := s.next.Fetch(ctx, typ, id, true)
	if store.IsNotFound(err) {
		if ttl := s.cache.Config().NullCacheTTL; ttl > 0 {
			if err := s.cache.SetValue(ctx, key, cachedRecord{Missing: true, Type: typ, ID: id}, ttl); err != nil {
				s.warn(ctx, "cache write failed", key, err)
			}
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if entry, err := newCachedRecord(rec); err != nil {
		s.warn(ctx, "cache encode failed", key, err)
	} else if err := s.cache.SetValue(ctx, key, entry, s.cache.Config().DefaultTTL); err != nil {
		s.warn(ctx, "cache write failed", key, err)
	}
	return visible(rec, withDeleted)
}

// Query serves query results from cache when query caching is enabled.
func (s *CachedStore) Query(ctx context.Context, q store.Query) ([]*store.Record, error) {
	if !s.cachesQueries() {
		return s.next.Query(ctx, q)
	}

	key := s.cache.Key("query", q.Type, queryFingerprint(q, true))
	var cached []cachedRecord
	err := s.cache.GetValue(ctx, key, &cached)
	if err == nil {
		recs, err := decodeAll(cached)
		if err == nil {
			return recs, nil
		}
		s.warn(ctx, "undecodable cached query", key, err)
	} else if !IsKeyNotFound(err) {
		s.warn(ctx, "cache read failed", key, err)
	}

	recs, err := s.next.Query(ctx, q)
	if err != nil {
		return nil, err
	}

	entries := make([]cachedRecord, 0, len(recs))
	for _, rec := range recs {
		entry, err := newCachedRecord(rec)
		if err != nil {
			s.warn(ctx, "cache encode failed", key, err)
			return recs, nil
		}
		entries = append(entries, entry)
	}
	if err := s.cache.SetWithDependency(ctx, key, entries, q.Type); err != nil {
		s.warn(ctx, "cache write failed", key, err)
	}
	return recs, nil
}

// Count serves counts from cache when query caching is enabled.
func (s *CachedStore) Count(ctx context.Context, q store.Query) (int, error) {
	if !s.cachesQueries() {
		return s.next.Count(ctx, q)
	}

	key := s.cache.Key("count", q.Type, queryFingerprint(q, false))
	var n int
	err := s.cache.GetValue(ctx, key, &n)
	if err == nil {
		return n, nil
	}
	if !IsKeyNotFound(err) {
		s.warn(ctx, "cache read failed", key, err)
	}

	n, err = s.next.Count(ctx, q)
	if err != nil {
		return 0, err
	}
	if err := s.cache.SetWithDependency(ctx, key, n, q.Type); err != nil {
		s.warn(ctx, "cache write failed", key, err)
	}
	return n, nil
}

// Save writes through and drops every cache entry the write can affect.
func (s *CachedStore) Save(ctx context.Context, rec *store.Record) (store.SaveResult, error) {
	res, err := s.next.Save(ctx, rec)
	id := rec.ID
	if id == "" {
		id = res.ID
	}
	s.invalidate(ctx, rec.Type, id)
	return res, err
}

// Delete writes through and drops every cache entry the delete can affect.
func (s *CachedStore) Delete(ctx context.Context, typ, id string) error {
	err := s.next.Delete(ctx, typ, id)
	s.invalidate(ctx, typ, id)
	return err
}

func (s *CachedStore) invalidate(ctx context.Context, typ, id string) {
	if !s.cache.Enabled() {
		return
	}
	if id != "" {
		key := s.docKey(typ, id)
		if err := s.cache.Delete(ctx, key); err != nil {
			s.warn(ctx, "cache invalidation failed", key, err)
		}
	}
	if s.cache.Config().CacheQueries {
		if err := s.cache.InvalidateDependency(ctx, typ); err != nil {
			s.warn(ctx, "cache invalidation failed", typ, err)
		}
	}
}

// Purge drops every cached document, query and count of typ. It is meant for
// writes that bypass the store, such as bulk imports or migrations.
func (s *CachedStore) Purge(ctx context.Context, typ string) error {
	if !s.cache.Enabled() {
		return nil
	}
	for _, kind := range []string{"doc", "query", "count"} {
		if err := s.cache.InvalidatePattern(ctx, s.cache.Key(kind, typ, "*")); err != nil {
			return err
		}
	}
	return s.cache.Delete(ctx, s.cache.dependencyKey(typ))
}

func (s *CachedStore) cachesQueries() bool {
	return s.cache.Enabled() && s.cache.Config().CacheQueries
}

func (s *CachedStore) warn(ctx context.Context, msg, key string, err error) {
	s.log.WarnContext(ctx, msg, "key", key, "error", err)
}

func visible(rec *store.Record, withDeleted bool) (*store.Record, error) {
	if rec.Deleted && !withDeleted {
		return nil, store.NotFound(rec.Type, rec.ID)
	}
	return rec, nil
}

func decodeAll(cached []cachedRecord) ([]*store.Record, error) {
	recs := make([]*store.Record, 0, len(cached))
	for _, c := range cached {
		rec, err := c.record()
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// queryFingerprint hashes the parts of q that select documents. Limit and
// order only matter for listings.
func queryFingerprint(q store.Query, listing bool) string {
	attrs := make([]string, 0, len(q.Where))
	for attr := range q.Where {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)

	var b strings.Builder
	for _, attr := range attrs {
		value, _ := json.Marshal(store.NormalizeValue(q.Where[attr]))
		fmt.Fprintf(&b, "%s=%s;", attr, value)
	}
	fmt.Fprintf(&b, "with_deleted=%t", q.WithDeleted)
	if listing {
		fmt.Fprintf(&b, ";limit=%d;desc=%t", q.Limit, q.Descending)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}
