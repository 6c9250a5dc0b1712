// Package auth signs users in and out and keeps the resulting identity for the
// rest of the storefront.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"storefront/models"
	"storefront/store"
)

// Provider is the remote identity service.
type Provider interface {
	SignUp(ctx context.Context, email, password, fullName string) (*models.AuthSession, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error)
	SignOut(ctx context.Context, session *models.AuthSession) error
	GetSession(ctx context.Context, refreshToken string) (*models.AuthSession, error)
}

// LocalProvider issues HS256 access tokens and opaque refresh tokens against
// the users table.
type LocalProvider struct {
	users      store.UserRepository
	tokens     store.TokenRepository
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	cost       int
	now        func() time.Time
}

func NewLocalProvider(users store.UserRepository, tokens store.TokenRepository, secret []byte, accessTTL, refreshTTL time.Duration) *LocalProvider {
	return &LocalProvider{
		users:      users,
		tokens:     tokens,
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		cost:       bcrypt.DefaultCost,
		now:        time.Now,
	}
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password, fullName string) (*models.AuthSession, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, &ProviderError{Message: "Email and password are required"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{Email: email, FullName: strings.TrimSpace(fullName)}
	if err := p.users.Create(ctx, user, string(hash)); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return nil, &ProviderError{Message: "User already registered", Err: err}
		case errors.Is(err, store.ErrUnavailable):
			return nil, ErrUnreachable
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return p.issue(ctx, user)
}

func (p *LocalProvider) SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error) {
	user, hash, err := p.users.GetByEmail(ctx, strings.TrimSpace(email))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrInvalidCredentials
	case errors.Is(err, store.ErrUnavailable):
		return nil, ErrUnreachable
	case err != nil:
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return p.issue(ctx, user)
}

func (p *LocalProvider) SignOut(ctx context.Context, session *models.AuthSession) error {
	if session == nil || session.RefreshToken == "" {
		return nil
	}
	rt, err := p.tokens.Get(ctx, session.RefreshToken)
	if err == nil {
		if rt.UserID != session.User.ID {
			return nil
		}
		err = p.tokens.Revoke(ctx, session.RefreshToken, p.now())
	}
	switch {
	case err == nil, errors.Is(err, store.ErrNotFound):
		return nil
	case errors.Is(err, store.ErrUnavailable):
		return ErrUnreachable
	}
	return fmt.Errorf("revoke refresh token: %w", err)
}

// GetSession trades a live refresh token for a new session. The old refresh
// token is revoked.
func (p *LocalProvider) GetSession(ctx context.Context, refreshToken string) (*models.AuthSession, error) {
	rt, err := p.tokens.Get(ctx, refreshToken)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrInvalidRefreshToken
	case errors.Is(err, store.ErrUnavailable):
		return nil, ErrUnreachable
	case err != nil:
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	if rt.RevokedAt != nil || !p.now().Before(rt.ExpiresAt) {
		return nil, ErrInvalidRefreshToken
	}

	user, err := p.users.GetByID(ctx, rt.UserID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrInvalidRefreshToken
	case errors.Is(err, store.ErrUnavailable):
		return nil, ErrUnreachable
	case err != nil:
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := p.tokens.Revoke(ctx, refreshToken, p.now()); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	return p.issue(ctx, user)
}

// ChangePassword replaces the password of userID after checking the old one.
func (p *LocalProvider) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	_, hash, err := p.users.GetByEmail(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := p.users.UpdatePassword(ctx, userID, string(newHash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// ParseAccessToken verifies the signature and expiry of an access token.
func (p *LocalProvider) ParseAccessToken(tokenStr string) (*models.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &models.Claims{}, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidAccessToken
	}
	claims, ok := token.Claims.(*models.Claims)
	if !ok || claims.UserID == "" {
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

func (p *LocalProvider) issue(ctx context.Context, user *models.User) (*models.AuthSession, error) {
	now := p.now()
	expiration := now.Add(p.accessTTL)
	claims := &models.Claims{
		UserID:   user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	rt := &models.RefreshToken{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: now.Add(p.refreshTTL),
	}
	if err := p.tokens.Save(ctx, rt); err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			return nil, ErrUnreachable
		}
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &models.AuthSession{
		AccessToken:  tokenString,
		RefreshToken: rt.Token,
		ExpiresAt:    expiration,
		User:         *user,
	}, nil
}
