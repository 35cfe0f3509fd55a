package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/devboard/devboard/internal/domain"
	"github.com/devboard/devboard/internal/repository"
	"github.com/devboard/devboard/pkg/jwt"
	pkglog "github.com/devboard/devboard/pkg/log"
)

type authService struct {
	users  repository.UserRepository
	tokens *jwt.Manager
}

// NewAuthService creates the account and token service.
func NewAuthService(users repository.UserRepository, tokens *jwt.Manager) AuthService {
	return &authService{users: users, tokens: tokens}
}

func (s *authService) Register(ctx context.Context, email, username, password string) (*domain.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if username == "" {
		username = emailLocalPart(email)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	user := &domain.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.tokenPair(user)
	if err != nil {
		return nil, nil, err
	}

	pkglog.Ctx(ctx).Info().Uint(pkglog.FieldUserID, user.ID).Msg("user registered")
	return user, pair, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*domain.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.tokenPair(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.Peek(refreshToken)
	if err != nil {
		return nil, err
	}

	// Username may have changed since the refresh token was minted.
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	access, refresh, accessExp, refreshExp, err := s.tokens.RefreshTokens(refreshToken, user.Username)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *authService) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tokens.ValidateToken(accessToken)
	if err != nil {
		return err
	}
	s.tokens.Revoke(claims.ID, claims.ExpiresAt.Time)
	return nil
}

func (s *authService) tokenPair(user *domain.User) (*TokenPair, error) {
	access, refresh, accessExp, refreshExp, err := s.tokens.GenerateTokenPair(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}
