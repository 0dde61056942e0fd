package repository

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/dance-studio-api/pkg/errors"
)

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client, nil), server
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	repo, _ := newCacheRepo(t)
	ctx := context.Background()

	var missing map[string]int
	err := repo.Get(ctx, "classes:list:1", &missing)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, "classes:list:1", map[string]int{"total": 3}, time.Minute))

	var got map[string]int
	require.NoError(t, repo.Get(ctx, "classes:list:1", &got))
	assert.Equal(t, 3, got["total"])
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, server := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "payments:summary", 1, time.Minute))
	require.NoError(t, repo.Set(ctx, "payments:summary:v2", 1, time.Minute))
	require.NoError(t, repo.Set(ctx, "classes:list:a", 1, time.Minute))

	require.NoError(t, repo.DeleteByPattern(ctx, "payments:summary*"))

	assert.False(t, server.Exists("payments:summary"))
	assert.False(t, server.Exists("payments:summary:v2"))
	assert.True(t, server.Exists("classes:list:a"))
}

func TestCacheRepositorySetNX(t *testing.T) {
	repo, server := newCacheRepo(t)
	ctx := context.Background()

	ok, err := repo.SetNX(ctx, "contact:dedupe:abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetNX(ctx, "contact:dedupe:abc", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	server.FastForward(2 * time.Minute)
	ok, err = repo.SetNX(ctx, "contact:dedupe:abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest int
	assert.ErrorIs(t, repo.Get(ctx, "k", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "k", 1, time.Minute))
	ok, err := repo.SetNX(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, repo.DeleteByPattern(ctx, "*"))
	assert.NoError(t, repo.Close())
}
