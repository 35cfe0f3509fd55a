package jwt

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrRevokedToken = errors.New("token has been revoked")
	ErrWrongType    = errors.New("wrong token type")
)

// Claims represents JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID   uint   `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Type     string `json:"type"` // "access" or "refresh"
}

// Manager signs and validates HMAC tokens.
type Manager struct {
	secret          []byte
	accessDuration  time.Duration
	refreshDuration time.Duration
	issuer          string

	// In-memory revocation store, keyed by token jti.
	revoked map[string]time.Time
	mu      sync.RWMutex
}

// NewManager creates a new JWT manager.
func NewManager(secret string, accessDuration, refreshDuration time.Duration, issuer string) *Manager {
	return &Manager{
		secret:          []byte(secret),
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
		issuer:          issuer,
		revoked:         make(map[string]time.Time),
	}
}

// GenerateTokenPair creates access and refresh tokens.
func (m *Manager) GenerateTokenPair(userID uint, email, username string) (accessToken, refreshToken string, accessExp, refreshExp int64, err error) {
	now := time.Now()

	accessExp = now.Add(m.accessDuration).Unix()
	accessToken, err = m.sign(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessDuration)),
		},
		UserID:   userID,
		Email:    email,
		Username: username,
		Type:     "access",
	})
	if err != nil {
		return "", "", 0, 0, err
	}

	refreshExp = now.Add(m.refreshDuration).Unix()
	refreshToken, err = m.sign(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.refreshDuration)),
		},
		UserID: userID,
		Email:  email,
		Type:   "refresh",
	})
	if err != nil {
		return "", "", 0, 0, err
	}

	return accessToken, refreshToken, accessExp, refreshExp, nil
}

// ValidateToken validates an access token and returns its claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != "access" {
		return nil, ErrWrongType
	}
	return claims, nil
}

// RefreshTokens exchanges a valid refresh token for a new pair.
func (m *Manager) RefreshTokens(refreshToken string, username string) (access, refresh string, accessExp, refreshExp int64, err error) {
	claims, err := m.parse(refreshToken)
	if err != nil {
		return "", "", 0, 0, err
	}
	if claims.Type != "refresh" {
		return "", "", 0, 0, ErrWrongType
	}

	// Old refresh token is single use.
	m.Revoke(claims.ID, claims.ExpiresAt.Time)

	return m.GenerateTokenPair(claims.UserID, claims.Email, username)
}

// Revoke marks a token id as revoked until its natural expiry.
func (m *Manager) Revoke(jti string, expiresAt time.Time) {
	if jti == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.revoked[jti] = expiresAt

	// Drop entries that expired anyway.
	now := time.Now()
	for id, exp := range m.revoked {
		if exp.Before(now) {
			delete(m.revoked, id)
		}
	}
}

func (m *Manager) isRevoked(jti string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.revoked[jti]
	return ok
}

// Peek validates a refresh token's signature, expiry and revocation
// state and returns its claims without consuming it.
func (m *Manager) Peek(refreshToken string) (*Claims, error) {
	claims, err := m.parse(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.Type != "refresh" {
		return nil, ErrWrongType
	}
	return claims, nil
}

func (m *Manager) sign(claims *Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *Manager) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if m.isRevoked(claims.ID) {
		return nil, ErrRevokedToken
	}
	return claims, nil
}
