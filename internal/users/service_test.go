package users

import (
	"context"
	"testing"
	"time"

	"github.com/deskhub/deskhub/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	lastUpsert *models.User
	upsertErr  error
}

func (f *fakeRepo) UpsertBySub(ctx context.Context, u *models.User) (*models.User, error) {
	f.lastUpsert = u
	ret := *u
	ret.ID = "abcd1234"
	ret.CreatedAt = time.Now().UTC()
	ret.UpdatedAt = ret.CreatedAt
	return &ret, f.upsertErr
}

func (f *fakeRepo) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	return nil, nil
}

func TestUpsertFromClaims(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)
	ctx := context.Background()

	u, err := svc.UpsertFromClaims(ctx, map[string]interface{}{
		"sub":    "sub-123",
		"email":  "x@example.com",
		"name":   "X User",
		"org_id": "acme",
	})
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Equal(t, "sub-123", u.Sub)
	require.Equal(t, "x@example.com", u.Email)
	require.Equal(t, "X User", u.Name)
	require.Equal(t, "acme", u.Tenant)
	require.NotEmpty(t, u.ID)
	require.NotNil(t, repo.lastUpsert)

	// missing sub => nil user, no repository call
	repo.lastUpsert = nil
	u2, err := svc.UpsertFromClaims(ctx, map[string]interface{}{"email": "y@e.com"})
	require.NoError(t, err)
	require.Nil(t, u2)
	require.Nil(t, repo.lastUpsert)
}

func TestMemoryUserRepository_UpsertKeepsIdentity(t *testing.T) {
	repo := NewMemoryUserRepository()
	svc := NewService(repo)
	ctx := context.Background()

	first, err := svc.UpsertFromClaims(ctx, map[string]interface{}{"sub": "s1", "name": "Old"})
	require.NoError(t, err)
	require.Equal(t, "s1", first.Tenant)

	second, err := svc.UpsertFromClaims(ctx, map[string]interface{}{"sub": "s1", "name": "New", "tenant": "team"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.CreatedAt, second.CreatedAt)
	require.Equal(t, "New", second.Name)
	require.Equal(t, "team", second.Tenant)

	got, err := svc.GetBySub(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "New", got.Name)

	missing, err := svc.GetBySub(ctx, "nobody")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestUpsertFromClaims_NormalizesProfile(t *testing.T) {
	svc := NewService(NewMemoryUserRepository())
	ctx := context.Background()

	cases := []struct {
		claims map[string]interface{}
		name   string
	}{
		{map[string]interface{}{"sub": "a", "given_name": "Ada", "family_name": "Lovelace"}, "Ada Lovelace"},
		{map[string]interface{}{"sub": "b", "preferred_username": "grace"}, "grace"},
		{map[string]interface{}{"sub": "c", "name": "  Linus  ", "preferred_username": "lt"}, "Linus"},
	}
	for _, tc := range cases {
		u, err := svc.UpsertFromClaims(ctx, tc.claims)
		require.NoError(t, err)
		require.Equal(t, tc.name, u.Name)
	}

	u, err := svc.UpsertFromClaims(ctx, map[string]interface{}{"sub": "d", "email": "Mixed@Example.COM"})
	require.NoError(t, err)
	require.Equal(t, "mixed@example.com", u.Email)
}
