package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ammar0144/docs4go/pkg/store"
)

// DocumentStore implements store.Store on a MySQL table of JSON documents.
// Updates are compare-and-swap on the rev column.
type DocumentStore struct {
	db      *gorm.DB
	table   string
	timeout time.Duration
}

var _ store.Store = (*DocumentStore)(nil)

// NewDocumentStore wraps an open GORM connection.
func NewDocumentStore(db *gorm.DB, config *Config) *DocumentStore {
	s := &DocumentStore{db: db, table: DefaultTable}
	if config != nil {
		s.table = config.TableName()
		s.timeout = config.QueryTimeout
	}
	return s
}

func (s *DocumentStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *DocumentStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

// Fetch loads one document by id.
func (s *DocumentStore) Fetch(ctx context.Context, typ, id string, withDeleted bool) (*store.Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.fetch(ctx, typ, id, withDeleted)
}

func (s *DocumentStore) fetch(ctx context.Context, typ, id string, withDeleted bool) (*store.Record, error) {
	q := s.conn(ctx).Where("type = ? AND id = ?", typ, id)
	if !withDeleted {
		q = q.Where("deleted = ?", false)
	}

	var doc Document
	if err := q.Take(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.NotFound(typ, id)
		}
		return nil, fmt.Errorf("failed to fetch %s/%s: %w", typ, id, err)
	}
	return toRecord(doc)
}

// Query lists documents of one type in creation order.
func (s *DocumentStore) Query(ctx context.Context, q store.Query) ([]*store.Record, error) {
	b, err := QueryFor(s.table, q)
	if err != nil {
		return nil, err
	}
	sql, args, err := b.BuildSelect()
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var docs []Document
	if err := s.db.WithContext(ctx).Raw(sql, args...).Scan(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Type, err)
	}

	recs := make([]*store.Record, 0, len(docs))
	for _, doc := range docs {
		rec, err := toRecord(doc)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Count counts matching documents. The query's limit is ignored.
func (s *DocumentStore) Count(ctx context.Context, q store.Query) (int, error) {
	b, err := QueryFor(s.table, q)
	if err != nil {
		return 0, err
	}
	sql, args, err := b.BuildCount()
	if err != nil {
		return 0, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int64
	if err := s.db.WithContext(ctx).Raw(sql, args...).Scan(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", q.Type, err)
	}
	return int(n), nil
}

// Save inserts a new document or compare-and-swaps an existing one.
func (s *DocumentStore) Save(ctx context.Context, rec *store.Record) (store.SaveResult, error) {
	attrs, err := store.Normalize(rec.Attributes)
	if err != nil {
		return store.SaveResult{}, err
	}
	body, err := json.Marshal(attrs)
	if err != nil {
		return store.SaveResult{}, fmt.Errorf("failed to encode %s body: %w", rec.Type, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	if rec.IsNew() {
		return s.create(ctx, rec, attrs, string(body), now)
	}

	rev := store.NextRevision(rec.Rev, attrs)
	res := s.conn(ctx).
		Where("type = ? AND id = ? AND rev = ?", rec.Type, rec.ID, rec.Rev).
		Updates(map[string]any{
			"rev":        rev,
			"deleted":    rec.Deleted,
			"body":       string(body),
			"updated_at": now,
		})
	if res.Error != nil {
		return store.SaveResult{}, fmt.Errorf("failed to update %s/%s: %w", rec.Type, rec.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := s.fetch(ctx, rec.Type, rec.ID, true)
		if err != nil {
			return store.SaveResult{}, err
		}
		return store.SaveResult{}, &store.ConflictError{Type: rec.Type, ID: rec.ID, Rev: rec.Rev, Current: current}
	}
	return store.SaveResult{ID: rec.ID, Rev: rev}, nil
}

func (s *DocumentStore) create(ctx context.Context, rec *store.Record, attrs map[string]any, body string, now time.Time) (store.SaveResult, error) {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	doc := Document{
		Type:      rec.Type,
		ID:        id,
		Rev:       store.NextRevision("", attrs),
		Deleted:   rec.Deleted,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.conn(ctx).Create(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			current, _ := s.fetch(ctx, rec.Type, id, true)
			return store.SaveResult{}, &store.ConflictError{Type: rec.Type, ID: id, Current: current}
		}
		return store.SaveResult{}, fmt.Errorf("failed to create %s: %w", rec.Type, err)
	}
	return store.SaveResult{ID: id, Rev: doc.Rev}, nil
}

// Delete removes a document regardless of its soft-delete state.
func (s *DocumentStore) Delete(ctx context.Context, typ, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res := s.conn(ctx).Where("type = ? AND id = ?", typ, id).Delete(&Document{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", typ, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return store.NotFound(typ, id)
	}
	return nil
}

func toRecord(doc Document) (*store.Record, error) {
	attrs := map[string]any{}
	if doc.Body != "" {
		if err := json.Unmarshal([]byte(doc.Body), &attrs); err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s body: %w", doc.Type, doc.ID, err)
		}
	}
	return &store.Record{
		Type:       doc.Type,
		ID:         doc.ID,
		Rev:        doc.Rev,
		Seq:        doc.Seq,
		Deleted:    doc.Deleted,
		Attributes: attrs,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}, nil
}
