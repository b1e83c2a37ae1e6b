package service

import (
	"context"
	"testing"
	"time"

	"github.com/jpch89/the5fire-Django/internal/domain"
	"github.com/jpch89/the5fire-Django/internal/repository"
	"github.com/jpch89/the5fire-Django/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuth(t *testing.T) (AuthService, *repository.MemoryStore) {
	t.Helper()
	repo := repository.NewMemoryStore()
	sessions := store.NewSessions(store.NewMemoryKV(), time.Hour)
	return NewAuthService(repo, sessions, zap.NewNop()), repo
}

func TestAuthService_LoginFlow(t *testing.T) {
	ctx := context.Background()
	auth, _ := newTestAuth(t)
	require.NoError(t, auth.SeedAdmin(ctx, "admin", "secret"))

	resp, err := auth.Login(ctx, LoginRequest{Username: "admin", Password: "secret"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "admin", resp.Username)

	user, err := auth.Principal(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.UserID, user.ID)
	assert.True(t, user.IsSuperuser)

	require.NoError(t, auth.Logout(ctx, resp.Token))
	_, err = auth.Principal(ctx, resp.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthService_LoginRejected(t *testing.T) {
	ctx := context.Background()
	auth, repo := newTestAuth(t)
	require.NoError(t, auth.SeedAdmin(ctx, "admin", "secret"))

	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = repo.UpsertUser(ctx, &domain.User{Username: "reader", PasswordHash: string(hash)})
	require.NoError(t, err)

	cases := []LoginRequest{
		{Username: "admin", Password: "wrong"},
		{Username: "nobody", Password: "secret"},
		{Username: "", Password: ""},
		{Username: "reader", Password: "pw"}, // 非 staff
	}
	for _, req := range cases {
		_, err := auth.Login(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidCredentials, req.Username)
	}
}

func TestAuthService_SeedAdminKeepsExistingUser(t *testing.T) {
	ctx := context.Background()
	auth, repo := newTestAuth(t)
	require.NoError(t, auth.SeedAdmin(ctx, "admin", "first"))
	require.NoError(t, auth.SeedAdmin(ctx, "admin", "second"))

	u, err := repo.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("first")))
}

func TestAuthService_PrincipalUnknownToken(t *testing.T) {
	auth, _ := newTestAuth(t)
	_, err := auth.Principal(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
