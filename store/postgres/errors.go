package postgres

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"

	"storefront/store"
)

// mapError translates driver failures into store errors, keeping the original
// in the chain.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return fmt.Errorf("%s: %w: %s", op, store.ErrDuplicate, pqErr.Message)
		case pqErr.Code == "23503":
			return fmt.Errorf("%s: %w: %s", op, store.ErrNotFound, pqErr.Message)
		case pqErr.Code == "22P02", pqErr.Code == "23514", pqErr.Code == "23502":
			return fmt.Errorf("%s: %w: %s", op, store.ErrInvalidInput, pqErr.Message)
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "57":
			return fmt.Errorf("%s: %w: %s", op, store.ErrUnavailable, pqErr.Message)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %v", op, store.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
