package userstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dalemusser/usergrid/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(context.Background(), ":memory:", DefaultOptions(), 0)
	require.NoError(t, err)
	s := New(db, nil)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func seeded(t *testing.T) *Store {
	t.Helper()
	s := newStore(t)
	n, err := s.Seed(context.Background(), "", DemoUsers())
	require.NoError(t, err)
	require.Equal(t, len(DemoUsers()), n)
	return s
}

func TestSeed_OnlyWhenEmpty(t *testing.T) {
	s := seeded(t)
	n, err := s.Seed(context.Background(), "", DemoUsers())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSeed_FileLock(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(context.Background(), filepath.Join(dir, "users.db"), DefaultOptions(), 0)
	require.NoError(t, err)
	s := New(db, nil)
	defer s.Close()
	require.NoError(t, s.EnsureSchema(context.Background()))

	n, err := s.Seed(context.Background(), filepath.Join(dir, "users.db.lock"), DemoUsers()[:3])
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestList_PagingAndFilters(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	users, total, err := s.List(ctx, Query{Limit: 8})
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	assert.Len(t, users, 8)

	users, total, err = s.List(ctx, Query{Offset: 8, Limit: 8})
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	assert.Len(t, users, 4)

	users, total, err = s.List(ctx, Query{Email: "hand-china"})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	for _, u := range users {
		assert.Contains(t, u.Email, "hand-china")
	}

	age := 34
	users, _, err = s.List(ctx, Query{Age: &age})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "李华", users[0].Name)

	users, _, err = s.List(ctx, Query{Name: "%"})
	require.NoError(t, err)
	assert.Empty(t, users, "LIKE wildcards in filters are literal")
}

func TestList_SortByAge(t *testing.T) {
	s := seeded(t)
	users, _, err := s.List(context.Background(), Query{SortBy: "age", Desc: true, Limit: 3})
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, 52, *users[0].Age)
	assert.Equal(t, 45, *users[1].Age)

	users, _, err = s.List(context.Background(), Query{SortBy: "age; DROP TABLE users", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), users[0].ID, "unknown sort columns keep id order")
}

func TestSaveGetDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	u := User{Name: "Cid", Age: intp(40), Sex: "M", Email: "cid@qq.com", StartDate: "2020-01-01", Active: true}
	require.NoError(t, s.Save(ctx, &u))
	require.NotZero(t, u.ID)

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, got)

	u.Age = nil
	u.Active = false
	require.NoError(t, s.Save(ctx, &u))
	got, err = s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Age)
	assert.False(t, got.Active)

	dup := User{Name: "Cid"}
	assert.ErrorIs(t, s.Save(ctx, &dup), ErrConflict)

	require.NoError(t, s.Delete(ctx, u.ID))
	_, err = s.Get(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, u.ID), ErrNotFound)

	ghost := User{ID: 999, Name: "ghost"}
	assert.ErrorIs(t, s.Save(ctx, &ghost), ErrNotFound)
}

func TestApply(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	first, err := s.Get(ctx, 1)
	require.NoError(t, err)
	first.Code = "HR9999"

	out, err := s.Apply(ctx, []Change{
		{Status: dataset.StatusUpdate, User: first},
		{Status: dataset.StatusAdd, User: User{Name: "Dora", Age: intp(20), Sex: "F"}},
		{Status: dataset.StatusDelete, User: User{ID: 2}},
		{Status: dataset.StatusSync, User: User{ID: 3}},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.NotZero(t, out[1].ID)

	n, err := s.Count(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "HR9999", got.Code)
}

func TestApply_RollsBackOnError(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	_, err := s.Apply(ctx, []Change{
		{Status: dataset.StatusAdd, User: User{Name: "Eve"}},
		{Status: dataset.StatusAdd, User: User{Name: "Alice"}},
	})
	assert.ErrorIs(t, err, ErrConflict)

	users, _, err := s.List(ctx, Query{Name: "Eve"})
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestFromRecord(t *testing.T) {
	tests := []struct {
		name string
		rec  dataset.Record
		want Change
	}{
		{
			name: "loaded row",
			rec:  dataset.Record{"id": 3.0, "name": "Ann", "age": 30.0, "active": true, "startDate": "2021-07-01T00:00:00Z", dataset.StatusKey: "update"},
			want: Change{Status: dataset.StatusUpdate, User: User{ID: 3, Name: "Ann", Age: intp(30), Active: true, StartDate: "2021-07-01"}},
		},
		{
			name: "new row without status",
			rec:  dataset.Record{"name": "Bo", "email": "bo@qq.com"},
			want: Change{Status: dataset.StatusAdd, User: User{Name: "Bo", Email: "bo@qq.com"}},
		},
		{
			name: "existing row without status",
			rec:  dataset.Record{"id": "7", "name": "Cy"},
			want: Change{Status: dataset.StatusUpdate, User: User{ID: 7, Name: "Cy"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromRecord(tt.rec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := FromRecord(dataset.Record{"startDate": "someday"})
	assert.Error(t, err)
	_, err = FromRecord(dataset.Record{"active": "perhaps"})
	assert.Error(t, err)
	_, err = FromRecord(dataset.Record{"age": true})
	assert.Error(t, err)
}

func TestUser_Record(t *testing.T) {
	rec := User{ID: 1, Name: "Ann", Age: intp(30), Email: "ann@qq.com"}.Record()
	assert.Equal(t, dataset.Record{"id": int64(1), "name": "Ann", "active": false, "age": 30, "email": "ann@qq.com"}, rec)
}
