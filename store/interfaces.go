// Package store defines the backend boundary the storefront depends on: typed
// repositories per table, a row-change feed and the errors they return.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"storefront/models"
)

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByCategory(ctx context.Context, category string) ([]models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error

	AddImages(ctx context.Context, productID uuid.UUID, urls []string) ([]models.ProductImage, error)
	Images(ctx context.Context, productID uuid.UUID) ([]models.ProductImage, error)
}

type SessionRepository interface {
	// FindActive returns ErrNotFound when the user has no active session.
	FindActive(ctx context.Context, userID string) (*models.ShoppingSession, error)
	Create(ctx context.Context, session *models.ShoppingSession) error
	Close(ctx context.Context, id uuid.UUID) error
}

type CartItemRepository interface {
	// ListBySession joins every row with its product. A row whose product no
	// longer resolves comes back with a nil Product.
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.CartItem, error)
	Find(ctx context.Context, sessionID, productID uuid.UUID) (*models.CartItem, error)
	Create(ctx context.Context, item *models.CartItem) error
	Update(ctx context.Context, item *models.CartItem) error

	SetQuantity(ctx context.Context, sessionID, productID uuid.UUID, quantity int) error
	SetSavedForLater(ctx context.Context, sessionID, productID uuid.UUID, saved bool) error
	Delete(ctx context.Context, sessionID, productID uuid.UUID) error
	DeleteBySession(ctx context.Context, sessionID uuid.UUID) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	AddItems(ctx context.Context, orderID uuid.UUID, items []models.OrderItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetAll(ctx context.Context) ([]models.Order, error)
	GetByUser(ctx context.Context, userID string) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (*models.User, string, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
}

type TokenRepository interface {
	Save(ctx context.Context, token *models.RefreshToken) error
	Get(ctx context.Context, token string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, token string, at time.Time) error
}

// Backend bundles everything the storefront needs from its data platform.
type Backend struct {
	Products  ProductRepository
	Sessions  SessionRepository
	CartItems CartItemRepository
	Orders    OrderRepository
	Users     UserRepository
	Tokens    TokenRepository
	Feed      ChangeFeed
}
