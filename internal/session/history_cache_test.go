package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*HistoryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewHistoryCache(client, time.Hour, nil), mr
}

func TestHistoryCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	turns := []Turn{
		{Role: RoleUser, Text: "what is the price"},
		{Role: RoleBot, Text: "here are our packages"},
	}
	require.NoError(t, cache.Save(ctx, "sess-1", turns))

	loaded, err := cache.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, turns, loaded)
}

func TestHistoryCacheMissReturnsNil(t *testing.T) {
	cache, _ := newTestCache(t)

	loaded, err := cache.Load(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestHistoryCacheExpires(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, "sess-1", []Turn{{Role: RoleUser, Text: "hi"}}))
	mr.FastForward(2 * time.Hour)

	loaded, err := cache.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
