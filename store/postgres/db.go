// Package postgres implements the store boundary on PostgreSQL through
// database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"storefront/store"
)

type DB struct {
	*sql.DB
	dsn    string
	logger logrus.FieldLogger
}

func Connect(ctx context.Context, dsn string, logger logrus.FieldLogger) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return &DB{DB: db, dsn: dsn, logger: logger.WithField("component", "postgres")}, nil
}

// Backend wires the repositories to db. The change feed is fed by feed, which
// must already be listening.
func (db *DB) Backend(feed store.ChangeFeed) *store.Backend {
	return &store.Backend{
		Products:  &productRepo{db: db.DB},
		Sessions:  &sessionRepo{db: db.DB},
		CartItems: &cartItemRepo{db: db.DB},
		Orders:    &orderRepo{db: db.DB},
		Users:     &userRepo{db: db.DB},
		Tokens:    &tokenRepo{db: db.DB},
		Feed:      feed,
	}
}
