package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"storefront/models"
	"storefront/store"
)

type userRepo struct {
	db *sql.DB
}

func (r *userRepo) Create(ctx context.Context, u *models.User, hash string) error {
	if u == nil || u.Email == "" {
		return store.ErrInvalidInput
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, full_name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, u.ID, u.Email, u.FullName, hash).Scan(&u.CreatedAt)
	return mapError("create user", err)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, string, error) {
	var u models.User
	var hash string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, created_at, password_hash
		FROM users WHERE lower(email) = lower($1)
	`, email).Scan(&u.ID, &u.Email, &u.FullName, &u.CreatedAt, &hash)
	if err != nil {
		return nil, "", mapError("get user by email", err)
	}
	return &u, hash, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrNotFound
	}
	var u models.User
	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, full_name, created_at FROM users WHERE id = $1", id,
	).Scan(&u.ID, &u.Email, &u.FullName, &u.CreatedAt)
	if err != nil {
		return nil, mapError("get user", err)
	}
	return &u, nil
}

func (r *userRepo) UpdatePassword(ctx context.Context, id string, hash string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET password_hash = $1 WHERE id = $2", hash, id)
	if err != nil {
		return mapError("update password", err)
	}
	return requireAffected(res, "update password")
}

type tokenRepo struct {
	db *sql.DB
}

func (r *tokenRepo) Save(ctx context.Context, t *models.RefreshToken) error {
	if t == nil || t.Token == "" {
		return store.ErrInvalidInput
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, user_id, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4)
	`, t.Token, t.UserID, t.ExpiresAt, t.RevokedAt)
	return mapError("save refresh token", err)
}

func (r *tokenRepo) Get(ctx context.Context, token string) (*models.RefreshToken, error) {
	t := models.RefreshToken{Token: token}
	var revoked sql.NullTime
	err := r.db.QueryRowContext(ctx,
		"SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token = $1", token,
	).Scan(&t.UserID, &t.ExpiresAt, &revoked)
	if err != nil {
		return nil, mapError("get refresh token", err)
	}
	if revoked.Valid {
		t.RevokedAt = &revoked.Time
	}
	return &t, nil
}

func (r *tokenRepo) Revoke(ctx context.Context, token string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at = $1 WHERE token = $2", at, token,
	)
	if err != nil {
		return mapError("revoke refresh token", err)
	}
	return requireAffected(res, "revoke refresh token")
}
