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

func TestRedisRepository_CreateGetTake(t *testing.T) {
	repo, m := newRedisRepo(t)
	ctx := context.Background()
	s := &Session{
		ID:        Digest("r1"),
		Sub:       "sub-1",
		Tenant:    "acme",
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Minute),
	}
	require.NoError(t, repo.Create(ctx, s))
	require.True(t, m.Exists("test:session:"+s.ID))

	got, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "acme", got.Tenant)

	taken, err := repo.Take(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, "sub-1", taken.Sub)

	again, err := repo.Take(ctx, s.ID)
	require.NoError(t, err)
	require.Nil(t, again)
}

func TestRedisRepository_TTLExpiry(t *testing.T) {
	repo, m := newRedisRepo(t)
	ctx := context.Background()
	s := &Session{ID: Digest("r2"), Sub: "sub-2", ExpiresAt: time.Now().UTC().Add(time.Second)}
	require.NoError(t, repo.Create(ctx, s))

	got, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	m.FastForward(2 * time.Second)

	got, err = repo.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisRepository_DeleteBySub(t *testing.T) {
	repo, m := newRedisRepo(t)
	ctx := context.Background()
	exp := time.Now().UTC().Add(time.Hour)
	for _, id := range []string{"a", "b"} {
		require.NoError(t, repo.Create(ctx, &Session{ID: Digest(id), Sub: "sub-1", ExpiresAt: exp}))
	}
	require.NoError(t, repo.Create(ctx, &Session{ID: Digest("c"), Sub: "sub-2", ExpiresAt: exp}))

	n, err := repo.DeleteBySub(ctx, "sub-1")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	require.False(t, m.Exists("test:session:user:sub-1"))

	left, err := repo.Get(ctx, Digest("c"))
	require.NoError(t, err)
	require.NotNil(t, left)
}

func TestRedisRepository_ServiceRotate(t *testing.T) {
	repo, _ := newRedisRepo(t)
	svc := NewService(repo)
	ctx := context.Background()

	rt, err := svc.CreateSession(ctx, "sub-3", "acme", time.Hour)
	require.NoError(t, err)
	next, sess, err := svc.Rotate(ctx, rt, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, next)
	require.Equal(t, "sub-3", sess.Sub)

	replay, _, err := svc.Rotate(ctx, rt, time.Hour)
	require.NoError(t, err)
	require.Empty(t, replay)
}
