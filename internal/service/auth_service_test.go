package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/mocktest-backend/internal/model"
)

func newTestAuth(t *testing.T) (*AuthService, *testEnv) {
	env := newTestEnv(t)
	return NewAuthService(env.cfg, env.repo.Users(), env.kv), env
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	reg, err := auth.Register(ctx, &model.RegisterRequest{Name: "Asha", Email: "Asha@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleStudent, reg.User.Role)
	assert.NotEmpty(t, reg.Token)

	_, err = auth.Register(ctx, &model.RegisterRequest{Name: "Asha", Email: "asha@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	login, err := auth.Login(ctx, &model.LoginRequest{Email: "asha@example.com", Password: "secret1"}, model.RoleStudent)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)
	assert.NoError(t, auth.ValidateSession(ctx, claims.UserID, claims.ID))

	me, err := auth.Me(ctx, claims.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", me.Name)
}

func TestAuthService_LoginRejections(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	_, err := auth.Register(ctx, &model.RegisterRequest{Name: "Ravi", Email: "ravi@example.com", Password: "secret1"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		email string
		pass  string
		role  model.Role
	}{
		{"wrong password", "ravi@example.com", "nope", model.RoleStudent},
		{"unknown email", "nobody@example.com", "secret1", model.RoleStudent},
		{"wrong role", "ravi@example.com", "secret1", model.RoleAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Login(ctx, &model.LoginRequest{Email: tt.email, Password: tt.pass}, tt.role)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestAuthService_NewLoginInvalidatesOldToken(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	first, err := auth.Register(ctx, &model.RegisterRequest{Name: "Meera", Email: "meera@example.com", Password: "secret1"})
	require.NoError(t, err)
	old, err := auth.ValidateToken(first.Token)
	require.NoError(t, err)

	second, err := auth.Login(ctx, &model.LoginRequest{Email: "meera@example.com", Password: "secret1"}, model.RoleStudent)
	require.NoError(t, err)
	current, err := auth.ValidateToken(second.Token)
	require.NoError(t, err)

	assert.ErrorIs(t, auth.ValidateSession(ctx, old.UserID, old.ID), ErrSessionInvalidated)
	assert.NoError(t, auth.ValidateSession(ctx, current.UserID, current.ID))

	require.NoError(t, auth.Logout(ctx, current.UserID))
	assert.ErrorIs(t, auth.ValidateSession(ctx, current.UserID, current.ID), ErrNoActiveSession)
}

func TestAuthService_ValidateTokenRejectsForeignSignature(t *testing.T) {
	auth, env := newTestAuth(t)

	reg, err := auth.Register(context.Background(), &model.RegisterRequest{Name: "Kabir", Email: "kabir@example.com", Password: "secret1"})
	require.NoError(t, err)

	cfg := *env.cfg
	cfg.JWTSecret = "another-secret"
	other := NewAuthService(&cfg, env.repo.Users(), env.kv)
	_, err = other.ValidateToken(reg.Token)
	assert.Error(t, err)
}
