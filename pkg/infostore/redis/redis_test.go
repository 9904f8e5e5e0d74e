package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tusgate/tusgate/pkg/engine"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "tusgate:")
}

func TestRedisStoreCreateGetUpdateDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := engine.Record{ID: "upload-1", Length: 100}
	require.NoError(t, s.Create(ctx, rec))

	got, err := s.Get(ctx, "upload-1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	rec.Offset = 10
	require.NoError(t, s.Update(ctx, rec))
	got, err = s.Get(ctx, "upload-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Offset)

	require.NoError(t, s.Delete(ctx, "upload-1"))
	_, err = s.Get(ctx, "upload-1")
	assert.ErrorIs(t, err, engine.ErrRecordNotFound)
}

func TestRedisStoreCreateRejectsDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := engine.Record{ID: "upload-1"}
	require.NoError(t, s.Create(ctx, rec))
	assert.Error(t, s.Create(ctx, rec))
}

func TestRedisStoreUpdateMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.Update(context.Background(), engine.Record{ID: "missing"})
	assert.ErrorIs(t, err, engine.ErrRecordNotFound)
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := New(client, "tusgate:")

	require.NoError(t, s.Create(context.Background(), engine.Record{ID: "upload-1"}))
	assert.True(t, mr.Exists("tusgate:upload-1"))
}
