package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibliohub/pkg/database"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := database.OpenForTest()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepo(db)
}

func TestCreateUserDefaultsToUserRole(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.CreateUser(ctx, User{ID: "u1", Name: "Ana", Email: "Ana@Example.com", PasswordHash: "h"})
	require.NoError(t, err)

	u, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, RoleUser, u.Role)
	assert.True(t, u.Active)
	assert.Equal(t, 0, u.TokenVersion)
	assert.Nil(t, u.LastSeenAt)
}

func TestGetByEmailIsCaseInsensitive(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateUser(ctx, User{ID: "u1", Name: "Ana", Email: "Ana@Example.com", PasswordHash: "h"}))

	u, err := repo.GetByEmail(ctx, "ANA@example.COM")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1", u.ID)

	u, err = repo.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestDuplicateEmailRejected(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateUser(ctx, User{ID: "u1", Name: "Ana", Email: "ana@example.com", PasswordHash: "h"}))

	err := repo.CreateUser(ctx, User{ID: "u2", Name: "Otra", Email: "ana@example.com", PasswordHash: "h"})
	require.Error(t, err)
}

func TestPasswordChangeRevokesOldTokens(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateUser(ctx, User{ID: "u1", Name: "Ana", Email: "ana@example.com", PasswordHash: "old"}))

	require.NoError(t, repo.UpdatePasswordAndBumpTokenVersion(ctx, "u1", "new"))

	v, err := repo.GetTokenVersion(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	u, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new", u.PasswordHash)

	err = repo.UpdatePasswordAndBumpTokenVersion(ctx, "missing", "x")
	require.Error(t, err)
}

func TestBumpTokenVersion(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateUser(ctx, User{ID: "u1", Name: "Ana", Email: "ana@example.com", PasswordHash: "h"}))

	require.NoError(t, repo.BumpTokenVersion(ctx, "u1"))
	require.NoError(t, repo.BumpTokenVersion(ctx, "u1"))

	v, err := repo.GetTokenVersion(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	require.Error(t, repo.BumpTokenVersion(ctx, "missing"))
}

func TestTouchLastSeen(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateUser(ctx, User{ID: "u1", Name: "Ana", Email: "ana@example.com", PasswordHash: "h"}))

	require.NoError(t, repo.TouchLastSeen(ctx, "u1"))

	u, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, u.LastSeenAt)
}
