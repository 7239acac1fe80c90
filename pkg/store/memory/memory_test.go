package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar0144/docs4go/pkg/store"
)

func TestSaveAssignsIDAndRevision(t *testing.T) {
	ctx := context.Background()
	s := New()

	res, err := s.Save(ctx, &store.Record{Type: "post", Attributes: map[string]any{"title": "hello"}})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Regexp(t, `^1-[0-9a-f]{16}$`, res.Rev)

	rec, err := s.Fetch(ctx, "post", res.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "hello", rec.Attributes["title"])
	assert.Equal(t, res.Rev, rec.Rev)
}

func TestSaveDetectsStaleRevision(t *testing.T) {
	ctx := context.Background()
	s := New()

	res, err := s.Save(ctx, &store.Record{Type: "post", Attributes: map[string]any{"title": "a"}})
	require.NoError(t, err)

	second, err := s.Save(ctx, &store.Record{Type: "post", ID: res.ID, Rev: res.Rev, Attributes: map[string]any{"title": "b"}})
	require.NoError(t, err)
	assert.NotEqual(t, res.Rev, second.Rev)
	assert.Regexp(t, `^2-`, second.Rev)

	_, err = s.Save(ctx, &store.Record{Type: "post", ID: res.ID, Rev: res.Rev, Attributes: map[string]any{"title": "c"}})
	require.Error(t, err)
	assert.True(t, store.IsConflict(err))

	var conflict *store.ConflictError
	require.True(t, errors.As(err, &conflict))
	require.NotNil(t, conflict.Current)
	assert.Equal(t, "b", conflict.Current.Attributes["title"])
	assert.Equal(t, second.Rev, conflict.Current.Rev)
}

func TestSaveMissingDocument(t *testing.T) {
	s := New()
	_, err := s.Save(context.Background(), &store.Record{Type: "post", ID: "nope", Rev: "1-x"})
	assert.True(t, store.IsNotFound(err))
}

func TestFetchHidesDeleted(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Put(&store.Record{Type: "post", ID: "p1", Deleted: true, Attributes: map[string]any{"deleted_at": "now"}}))

	_, err := s.Fetch(ctx, "post", "p1", false)
	assert.True(t, store.IsNotFound(err))

	rec, err := s.Fetch(ctx, "post", "p1", true)
	require.NoError(t, err)
	assert.True(t, rec.Deleted)
}

func TestQueryOrderLimitAndVisibility(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		require.NoError(t, s.Put(&store.Record{Type: "comment", ID: id, Attributes: map[string]any{"post_id": "p1"}}))
	}
	require.NoError(t, s.Put(&store.Record{Type: "comment", ID: "c5", Deleted: true, Attributes: map[string]any{"post_id": "p1"}}))
	require.NoError(t, s.Put(&store.Record{Type: "comment", ID: "other", Attributes: map[string]any{"post_id": "p2"}}))

	tests := []struct {
		name string
		q    store.Query
		want []string
	}{
		{"ascending", store.Query{Type: "comment", Where: map[string]any{"post_id": "p1"}}, []string{"c1", "c2", "c3", "c4"}},
		{"descending", store.Query{Type: "comment", Where: map[string]any{"post_id": "p1"}, Descending: true}, []string{"c4", "c3", "c2", "c1"}},
		{"limit", store.Query{Type: "comment", Where: map[string]any{"post_id": "p1"}, Limit: 2}, []string{"c1", "c2"}},
		{"limit descending", store.Query{Type: "comment", Where: map[string]any{"post_id": "p1"}, Limit: 2, Descending: true}, []string{"c4", "c3"}},
		{"with deleted", store.Query{Type: "comment", Where: map[string]any{"post_id": "p1"}, WithDeleted: true}, []string{"c1", "c2", "c3", "c4", "c5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := s.Query(ctx, tt.q)
			require.NoError(t, err)
			ids := make([]string, len(recs))
			for i, r := range recs {
				ids[i] = r.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	n, err := s.Count(ctx, store.Query{Type: "comment", Where: map[string]any{"post_id": "p1"}, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestQueryNilMatchesMissing(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Put(&store.Record{Type: "comment", ID: "a", Attributes: map[string]any{}}))
	require.NoError(t, s.Put(&store.Record{Type: "comment", ID: "b", Attributes: map[string]any{"post_id": nil}}))
	require.NoError(t, s.Put(&store.Record{Type: "comment", ID: "c", Attributes: map[string]any{"post_id": "p1"}}))

	recs, err := s.Query(ctx, store.Query{Type: "comment", Where: map[string]any{"post_id": nil}})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Put(&store.Record{Type: "post", ID: "p1", Attributes: map[string]any{"title": "a"}}))

	rec, err := s.Fetch(ctx, "post", "p1", false)
	require.NoError(t, err)
	rec.Attributes["title"] = "mutated"

	again, err := s.Fetch(ctx, "post", "p1", false)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Attributes["title"])
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Put(&store.Record{Type: "post", ID: "p1"}))

	require.NoError(t, s.Delete(ctx, "post", "p1"))
	assert.Equal(t, 0, s.Len("post"))
	assert.True(t, store.IsNotFound(s.Delete(ctx, "post", "p1")))
}

func TestStatsCountCalls(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _ = s.Fetch(ctx, "post", "x", false)
	_, _ = s.Query(ctx, store.Query{Type: "post"})
	assert.Equal(t, Stats{Fetches: 1, Queries: 1}, s.Stats())

	s.ResetStats()
	assert.Equal(t, Stats{}, s.Stats())
}
