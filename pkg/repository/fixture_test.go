package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ammar0144/docs4go/pkg/store"
	"github.com/ammar0144/docs4go/pkg/store/memory"
)

type fixture struct {
	repo    *Repository
	store   *memory.Store
	metrics *prometheus.Registry
	before  []string
	after   []string
}

// newFixture wires a blogging schema over an in-memory store:
//
//	User    has_many posts (destroy), has_one profile (destroy),
//	        has_many memberships (destroy), has_many groups through memberships
//	Post    soft-deletable, belongs_to user, has_many comments (destroy, soft),
//	        attachments (nullify), reviews (nullify, soft), notes (destroy)
//	Group   has_many memberships, has_one charter (nullify)
func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), metrics: prometheus.NewRegistry()}
	f.repo = f.newRepo(t, f.store, mutate...)
	return f
}

func (f *fixture) newRepo(t *testing.T, s store.Store, mutate ...func(*Config)) *Repository {
	t.Helper()
	hooks := DestroyHookFuncs{
		Before: func(ctx context.Context, e *Entity) error {
			f.before = append(f.before, e.ID())
			return nil
		},
		After: func(ctx context.Context, e *Entity) error {
			f.after = append(f.after, e.ID())
			return nil
		},
	}
	requireName := ValidatorFunc(func(ctx context.Context, typ string, attrs map[string]any) error {
		if s, _ := attrs["name"].(string); s == "" {
			return errors.New("name can't be blank")
		}
		return nil
	})

	reg := NewRegistry()
	reg.MustDefine("User",
		Protected("role"),
		HasMany("posts", Dependent(CascadeDestroy)),
		HasOne("profile", Dependent(CascadeDestroy)),
		HasMany("memberships", Dependent(CascadeDestroy)),
		HasManyThrough("groups", "memberships"),
	)
	reg.MustDefine("Post",
		WithSoftDelete("deleted_at"),
		WithDestroyHooks(hooks),
		BelongsTo("user"),
		HasMany("comments", Dependent(CascadeDestroy)),
		HasMany("attachments"),
		HasMany("reviews"),
		HasMany("notes", Dependent(CascadeDestroy)),
	)
	reg.MustDefine("Comment", WithSoftDelete("deleted_at"), BelongsTo("post"))
	reg.MustDefine("Attachment", WithValidator(requireName), BelongsTo("post"))
	reg.MustDefine("Review", WithSoftDelete("deleted_at"), BelongsTo("post"))
	reg.MustDefine("Note", BelongsTo("post"))
	reg.MustDefine("Profile", BelongsTo("user"))
	reg.MustDefine("Membership", BelongsTo("user"), BelongsTo("group"))
	reg.MustDefine("Group", HasMany("memberships"), HasOne("charter"))
	reg.MustDefine("Charter", BelongsTo("group"))

	cfg := DefaultConfig()
	if f.metrics != nil {
		cfg.Registerer = f.metrics
	}
	for _, m := range mutate {
		m(&cfg)
	}
	repo, err := New(s, reg, cfg)
	require.NoError(t, err)
	return repo
}

func (f *fixture) create(t *testing.T, typ string, attrs map[string]any) *Entity {
	t.Helper()
	e, err := f.repo.NewEntity(typ)
	require.NoError(t, err)
	for k, v := range attrs {
		e.Set(k, v)
	}
	require.NoError(t, e.Save(context.Background(), SkipValidation()))
	return e
}

func (f *fixture) stored(t *testing.T, typ, id string) *store.Record {
	t.Helper()
	rec, err := f.store.Fetch(context.Background(), typ, id, true)
	require.NoError(t, err)
	return rec
}

func ids(list []*Entity) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.ID()
	}
	return out
}

// flakyStore injects write failures in front of a memory store.
type flakyStore struct {
	*memory.Store
	conflicts int
	failWith  error
	saveCalls int
}

func (s *flakyStore) Save(ctx context.Context, rec *store.Record) (store.SaveResult, error) {
	s.saveCalls++
	if !rec.IsNew() && s.failWith != nil {
		return store.SaveResult{}, s.failWith
	}
	if !rec.IsNew() && s.conflicts > 0 {
		s.conflicts--
		cur, err := s.Store.Fetch(ctx, rec.Type, rec.ID, true)
		if err != nil {
			return store.SaveResult{}, err
		}
		return store.SaveResult{}, &store.ConflictError{Type: rec.Type, ID: rec.ID, Rev: rec.Rev, Current: cur}
	}
	return s.Store.Save(ctx, rec)
}
