package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"roza/backend/internal/domain"
	"roza/backend/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// AuthManager issues and verifies HS256 access tokens backed by the user
// accounts in the repository.
type AuthManager struct {
	repo   store.Repository
	secret []byte
	ttl    time.Duration
}

func NewAuthManager(repo store.Repository, secret string, ttl time.Duration) *AuthManager {
	return &AuthManager{repo: repo, secret: []byte(secret), ttl: ttl}
}

type accessClaims struct {
	Role     string `json:"role"`
	ClientID string `json:"client_id,omitempty"`
	jwt.RegisteredClaims
}

// Login checks credentials and returns a signed access token. A disabled
// account fails the same way as a wrong password.
func (m *AuthManager) Login(ctx context.Context, username, password string) (*domain.LoginResponse, error) {
	user, err := m.repo.GetUser(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	expiresAt := time.Now().Add(m.ttl)
	claims := accessClaims{
		Role:     user.Role,
		ClientID: user.ClientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &domain.LoginResponse{
		AccessToken: token,
		Role:        user.Role,
		ClientID:    user.ClientID,
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// Verify parses a bearer token and returns the actor it represents.
func (m *AuthManager) Verify(tokenString string) (domain.Actor, error) {
	var claims accessClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return domain.Actor{}, ErrInvalidToken
	}
	return domain.Actor{
		Username: claims.Subject,
		Role:     claims.Role,
		ClientID: claims.ClientID,
	}, nil
}
