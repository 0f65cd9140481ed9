package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(page int, id, parent string, pos int) *LayerData {
	return &LayerData{
		Page:     page,
		ID:       id,
		ParentID: parent,
		Position: pos,
		Kind:     "text",
		Record:   []byte(`{"id":"` + id + `","type":"text"}`),
	}
}

func exerciseBackend(t *testing.T, b Backend) {
	ctx := context.Background()
	require.NoError(t, b.Clear(ctx))

	require.NoError(t, b.Store(ctx, rec(1, "b", "a", 1)))
	require.NoError(t, b.Store(ctx, rec(1, "a", "", 0)))
	require.NoError(t, b.Store(ctx, rec(1, "c", "a", 2)))
	require.NoError(t, b.Store(ctx, rec(2, "a", "", 0)))

	got, err := b.Load(ctx, 1, "b")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ParentID)
	assert.JSONEq(t, `{"id":"b","type":"text"}`, string(got.Record))

	_, err = b.Load(ctx, 3, "b")
	assert.True(t, errors.Is(err, ErrNotFound))

	page, err := b.LoadPage(ctx, 1)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "a", page[0].ID)
	assert.Equal(t, "c", page[2].ID)

	kids, err := b.LoadChildren(ctx, 1, "a")
	require.NoError(t, err)
	assert.Len(t, kids, 2)

	pages, err := b.Pages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, pages)

	assert.True(t, b.Exists(ctx, 2, "a"))
	require.NoError(t, b.Delete(ctx, 2, "a"))
	assert.False(t, b.Exists(ctx, 2, "a"))
	require.NoError(t, b.Delete(ctx, 2, "a"))

	require.NoError(t, ReplacePage(ctx, b, 1, []*LayerData{rec(1, "z", "", 0)}))
	page, err = b.LoadPage(ctx, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "z", page[0].ID)

	tx, err := b.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Store(ctx, rec(1, "never", "", 1)))
	require.NoError(t, tx.Rollback())
	assert.False(t, b.Exists(ctx, 1, "never"))

	require.NoError(t, b.ClearPage(ctx, 1))
	page, err = b.LoadPage(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMemoryStorage(t *testing.T) {
	m := NewMemoryStorage()
	exerciseBackend(t, m)
	assert.Equal(t, 0, m.Count())
}

func TestMemoryStorageCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()
	d := rec(1, "a", "", 0)
	require.NoError(t, m.Store(ctx, d))
	d.Record[0] = 'X'

	got, err := m.Load(ctx, 1, "a")
	require.NoError(t, err)
	assert.Equal(t, byte('{'), got.Record[0])
}

func TestMemoryTransactionDone(t *testing.T) {
	ctx := context.Background()
	tx, err := NewMemoryStorage().BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Error(t, tx.Commit())
	assert.Error(t, tx.Store(ctx, rec(1, "a", "", 0)))
}

func TestSQLiteStorage(t *testing.T) {
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "layers.db"))
	if err != nil && strings.Contains(err.Error(), "CGO_ENABLED") {
		t.Skip("sqlite3 driver needs cgo")
	}
	require.NoError(t, err)
	defer s.Close()
	exerciseBackend(t, s)
}

func TestOpen(t *testing.T) {
	b, err := Open("memory", "", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, b)

	_, err = Open("etcd", "", "")
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
