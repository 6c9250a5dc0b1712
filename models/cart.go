package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

// ShoppingSession owns the cart rows of one user until it is closed on sign-out.
type ShoppingSession struct {
	ID        uuid.UUID     `json:"id"`
	UserID    string        `json:"user_id"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

type CartItem struct {
	ID              uuid.UUID       `json:"id"`
	SessionID       uuid.UUID       `json:"session_id"`
	ProductID       uuid.UUID       `json:"product_id"`
	Quantity        int             `json:"quantity"`
	PriceSnapshot   decimal.Decimal `json:"price_snapshot"`
	IsSavedForLater bool            `json:"is_saved_for_later"`
	Product         *Product        `json:"product"`
}

// LineTotal is the snapshot price times the quantity.
func (ci CartItem) LineTotal() decimal.Decimal {
	return ci.PriceSnapshot.Mul(decimal.NewFromInt(int64(ci.Quantity)))
}

type CartRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"omitempty,min=1"`
}

type QuantityRequest struct {
	Quantity int `json:"quantity"`
}
