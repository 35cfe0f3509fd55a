package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devboard/devboard/internal/domain"
	"github.com/devboard/devboard/internal/repository"
	"github.com/devboard/devboard/pkg/jwt"
)

type fakeUserRepo struct {
	byEmail map[string]*domain.User
	byID    map[uint]*domain.User
	nextID  uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byEmail: make(map[string]*domain.User),
		byID:    make(map[uint]*domain.User),
	}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.nextID++
	user.ID = r.nextID
	u := *user
	r.byEmail[u.Email] = &u
	r.byID[u.ID] = &u
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uint) (*domain.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func newAuthFixture() (AuthService, *fakeUserRepo, *jwt.Manager) {
	users := newFakeUserRepo()
	tokens := jwt.NewManager("test-secret", 15*time.Minute, 24*time.Hour, "devboard")
	return NewAuthService(users, tokens), users, tokens
}

func TestRegister(t *testing.T) {
	svc, _, tokens := newAuthFixture()

	user, pair, err := svc.Register(context.Background(), "Alice@Example.com", "alice", "s3cretpass")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "s3cretpass", user.PasswordHash)

	claims, err := tokens.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestRegisterDefaultsUsername(t *testing.T) {
	svc, _, _ := newAuthFixture()

	user, _, err := svc.Register(context.Background(), "bob@example.com", "", "s3cretpass")
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newAuthFixture()
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "alice@example.com", "alice", "s3cretpass")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "alice@example.com", "alice2", "otherpass")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	svc, _, _ := newAuthFixture()
	ctx := context.Background()

	registered, _, err := svc.Register(ctx, "alice@example.com", "alice", "s3cretpass")
	require.NoError(t, err)

	user, pair, err := svc.Login(ctx, "alice@example.com", "s3cretpass")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotEmpty(t, pair.RefreshToken)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newAuthFixture()
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "alice@example.com", "alice", "s3cretpass")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "s3cretpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRotatesTokens(t *testing.T) {
	svc, _, _ := newAuthFixture()
	ctx := context.Background()

	_, pair, err := svc.Register(ctx, "alice@example.com", "alice", "s3cretpass")
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The old refresh token is spent.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, jwt.ErrRevokedToken)
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	svc, _, tokens := newAuthFixture()
	ctx := context.Background()

	_, pair, err := svc.Register(ctx, "alice@example.com", "alice", "s3cretpass")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.AccessToken))

	_, err = tokens.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, jwt.ErrRevokedToken)
}
