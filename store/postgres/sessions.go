package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"storefront/models"
	"storefront/store"
)

type sessionRepo struct {
	db *sql.DB
}

func (r *sessionRepo) FindActive(ctx context.Context, userID string) (*models.ShoppingSession, error) {
	var s models.ShoppingSession
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, created_at
		FROM shopping_sessions
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at
		LIMIT 1
	`, userID, models.SessionActive).Scan(&s.ID, &s.UserID, &s.Status, &s.CreatedAt)
	if err != nil {
		return nil, mapError("find active session", err)
	}
	return &s, nil
}

func (r *sessionRepo) Create(ctx context.Context, s *models.ShoppingSession) error {
	if s == nil || s.UserID == "" {
		return store.ErrInvalidInput
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = models.SessionActive
	}
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO shopping_sessions (id, user_id, status) VALUES ($1, $2, $3) RETURNING created_at",
		s.ID, s.UserID, s.Status,
	).Scan(&s.CreatedAt)
	return mapError("create session", err)
}

func (r *sessionRepo) Close(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE shopping_sessions SET status = $1 WHERE id = $2", models.SessionClosed, id,
	)
	if err != nil {
		return mapError("close session", err)
	}
	return requireAffected(res, "close session")
}
