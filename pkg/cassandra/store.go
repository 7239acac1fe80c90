package cassandra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/ammar0144/docs4go/pkg/store"
)

const columns = "type, id, rev, seq, deleted, body, created_at, updated_at"

// Store implements store.Store on Cassandra.
type Store struct {
	session *gocql.Session
	config  *Config
	table   string
}

var _ store.Store = (*Store)(nil)

// NewStore connects to the cluster, creating the keyspace and table first when
// config.CreateSchema is set.
func NewStore(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	cluster, err := config.ClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if config.CreateSchema {
		if err := createSchema(cluster, config); err != nil {
			return nil, err
		}
	}

	cluster.Keyspace = config.Keyspace
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cassandra: %w", err)
	}

	return &Store{session: session, config: config, table: config.qualifiedTable()}, nil
}

func createSchema(cluster *gocql.ClusterConfig, config *Config) error {
	session, err := cluster.CreateSession()
	if err != nil {
		return fmt.Errorf("failed to connect to cassandra: %w", err)
	}
	defer session.Close()

	for _, stmt := range SchemaStatements(config) {
		if err := session.Query(stmt).Exec(); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// SchemaStatements returns the CQL creating the keyspace and documents table.
func SchemaStatements(config *Config) []string {
	return []string{
		fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}`,
			config.Keyspace, config.ReplicationFactor),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	type text,
	id text,
	rev text,
	seq bigint,
	deleted boolean,
	body text,
	created_at timestamp,
	updated_at timestamp,
	PRIMARY KEY ((type), id)
)`, config.qualifiedTable()),
	}
}

// Close closes the session
func (s *Store) Close() {
	s.session.Close()
}

// Fetch loads one document by id.
func (s *Store) Fetch(ctx context.Context, typ, id string, withDeleted bool) (*store.Record, error) {
	row := map[string]any{}
	err := s.session.Query(
		fmt.Sprintf("SELECT %s FROM %s WHERE type = ? AND id = ?", columns, s.table), typ, id,
	).WithContext(ctx).MapScan(row)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, store.NotFound(typ, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s/%s: %w", typ, id, err)
	}

	rec, err := rowToRecord(row)
	if err != nil {
		return nil, err
	}
	if rec.Deleted && !withDeleted {
		return nil, store.NotFound(typ, id)
	}
	return rec, nil
}

// Query reads the type's partition and filters it in memory.
func (s *Store) Query(ctx context.Context, q store.Query) ([]*store.Record, error) {
	recs, err := s.scan(ctx, q.Type)
	if err != nil {
		return nil, err
	}
	return q.Apply(recs), nil
}

// Count counts matching documents. The query's limit is ignored.
func (s *Store) Count(ctx context.Context, q store.Query) (int, error) {
	recs, err := s.scan(ctx, q.Type)
	if err != nil {
		return 0, err
	}
	q.Limit = 0
	return len(q.Apply(recs)), nil
}

func (s *Store) scan(ctx context.Context, typ string) ([]*store.Record, error) {
	iter := s.session.Query(
		fmt.Sprintf("SELECT %s FROM %s WHERE type = ?", columns, s.table), typ,
	).WithContext(ctx).Iter()

	var recs []*store.Record
	for {
		row := map[string]any{}
		if !iter.MapScan(row) {
			break
		}
		rec, err := rowToRecord(row)
		if err != nil {
			iter.Close()
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", typ, err)
	}
	return recs, nil
}

// Save inserts with IF NOT EXISTS or updates with IF rev = ?.
func (s *Store) Save(ctx context.Context, rec *store.Record) (store.SaveResult, error) {
	attrs, err := store.Normalize(rec.Attributes)
	if err != nil {
		return store.SaveResult{}, err
	}
	body, err := json.Marshal(attrs)
	if err != nil {
		return store.SaveResult{}, fmt.Errorf("failed to encode %s body: %w", rec.Type, err)
	}

	now := time.Now().UTC()
	if rec.IsNew() {
		return s.create(ctx, rec, attrs, string(body), now)
	}

	rev := store.NextRevision(rec.Rev, attrs)
	applied, err := s.session.Query(
		fmt.Sprintf("UPDATE %s SET rev = ?, deleted = ?, body = ?, updated_at = ? WHERE type = ? AND id = ? IF rev = ?", s.table),
		rev, rec.Deleted, string(body), now, rec.Type, rec.ID, rec.Rev,
	).WithContext(ctx).MapScanCAS(map[string]any{})
	if err != nil {
		return store.SaveResult{}, fmt.Errorf("failed to update %s/%s: %w", rec.Type, rec.ID, err)
	}
	if !applied {
		current, err := s.Fetch(ctx, rec.Type, rec.ID, true)
		if err != nil {
			return store.SaveResult{}, err
		}
		return store.SaveResult{}, &store.ConflictError{Type: rec.Type, ID: rec.ID, Rev: rec.Rev, Current: current}
	}
	return store.SaveResult{ID: rec.ID, Rev: rev}, nil
}

func (s *Store) create(ctx context.Context, rec *store.Record, attrs map[string]any, body string, now time.Time) (store.SaveResult, error) {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	rev := store.NextRevision("", attrs)

	existing := map[string]any{}
	applied, err := s.session.Query(
		fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?) IF NOT EXISTS", s.table, columns),
		rec.Type, id, rev, now.UnixNano(), rec.Deleted, body, now, now,
	).WithContext(ctx).MapScanCAS(existing)
	if err != nil {
		return store.SaveResult{}, fmt.Errorf("failed to create %s: %w", rec.Type, err)
	}
	if !applied {
		current, _ := rowToRecord(existing)
		return store.SaveResult{}, &store.ConflictError{Type: rec.Type, ID: id, Current: current}
	}
	return store.SaveResult{ID: id, Rev: rev}, nil
}

// Delete removes a document regardless of its soft-delete state.
func (s *Store) Delete(ctx context.Context, typ, id string) error {
	applied, err := s.session.Query(
		fmt.Sprintf("DELETE FROM %s WHERE type = ? AND id = ? IF EXISTS", s.table), typ, id,
	).WithContext(ctx).MapScanCAS(map[string]any{})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", typ, id, err)
	}
	if !applied {
		return store.NotFound(typ, id)
	}
	return nil
}

// rowToRecord converts a scanned row into a record.
func rowToRecord(row map[string]any) (*store.Record, error) {
	rec := &store.Record{Attributes: map[string]any{}}
	rec.Type, _ = row["type"].(string)
	rec.ID, _ = row["id"].(string)
	rec.Rev, _ = row["rev"].(string)
	rec.Seq, _ = row["seq"].(int64)
	rec.Deleted, _ = row["deleted"].(bool)
	rec.CreatedAt, _ = row["created_at"].(time.Time)
	rec.UpdatedAt, _ = row["updated_at"].(time.Time)

	if body, _ := row["body"].(string); body != "" {
		if err := json.Unmarshal([]byte(body), &rec.Attributes); err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s body: %w", rec.Type, rec.ID, err)
		}
	}
	if rec.Type == "" || rec.ID == "" {
		return nil, fmt.Errorf("incomplete document row")
	}
	return rec, nil
}
