package filesystem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tusgate/tusgate/pkg/engine"
)

func TestStoreCreateGetUpdateDelete(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	rec := engine.Record{ID: "upload-1", Length: 100, Offset: 0}
	require.NoError(t, s.Create(ctx, rec))

	got, err := s.Get(ctx, "upload-1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	rec.Offset = 50
	require.NoError(t, s.Update(ctx, rec))

	got, err = s.Get(ctx, "upload-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.Offset)

	require.NoError(t, s.Delete(ctx, "upload-1"))
	_, err = s.Get(ctx, "upload-1")
	assert.ErrorIs(t, err, engine.ErrRecordNotFound)
}

func TestStoreCreateRejectsDuplicate(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	rec := engine.Record{ID: "upload-1"}
	require.NoError(t, s.Create(ctx, rec))
	assert.Error(t, s.Create(ctx, rec))
}

func TestStoreDeleteMissingIsNotError(t *testing.T) {
	s := New(t.TempDir())
	assert.NoError(t, s.Delete(context.Background(), "nonexistent"))
}

func TestStoreListIDs(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, engine.Record{ID: "a"}))
	require.NoError(t, s.Create(ctx, engine.Record{ID: "b"}))

	ids, err := s.ListIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}
