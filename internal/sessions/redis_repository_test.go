package sessions

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisRepo(t *testing.T) (*RedisRepository, *mr.Miniredis) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return NewRedisRepository(redis.NewClient(&redis.Options{Addr: m.Addr()}), "test:session:"), m
}

func TestRedisRepository_TakeOnce(t *testing.T) {
	repo, m := newRedisRepo(t)
	ctx := context.Background()
	s := &Session{
		RefreshToken: "r1",
		Sub:          "sub-1",
		Username:     "ann",
		CreatedAt:    time.Now().UTC(),
		ExpiresAt:    time.Now().UTC().Add(5 * time.Second),
	}
	require.NoError(t, repo.Create(ctx, s))
	require.True(t, m.Exists("test:session:r1"))

	got, err := repo.Take(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "ann", got.Username)

	got, err = repo.Take(ctx, "r1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisRepository_TTLExpiry(t *testing.T) {
	repo, m := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &Session{RefreshToken: "r2", Sub: "sub-2", ExpiresAt: time.Now().UTC().Add(time.Second)}))

	m.FastForward(2 * time.Second)

	got, err := repo.Take(ctx, "r2")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisRepository_Delete(t *testing.T) {
	repo, m := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &Session{RefreshToken: "r3", Sub: "s", ExpiresAt: time.Now().UTC().Add(time.Minute)}))
	require.NoError(t, repo.DeleteByRefresh(ctx, "r3"))
	require.False(t, m.Exists("test:session:r3"))
}
