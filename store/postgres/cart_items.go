package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/models"
	"storefront/store"
)

type cartItemRepo struct {
	db *sql.DB
}

func (r *cartItemRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.CartItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ci.id, ci.session_id, ci.product_id, ci.quantity, ci.price_snapshot, ci.is_saved_for_later,
			p.id, p.name, p.price, p.category, p.description, p.image, p.created_at
		FROM cart_items ci
		LEFT JOIN products p ON p.id = ci.product_id
		WHERE ci.session_id = $1
		ORDER BY ci.id
	`, sessionID)
	if err != nil {
		return nil, mapError("list cart items", err)
	}
	defer rows.Close()

	var items []models.CartItem
	for rows.Next() {
		var (
			ci          models.CartItem
			pid         uuid.NullUUID
			name, cat   sql.NullString
			desc, image sql.NullString
			price       decimal.NullDecimal
			created     sql.NullTime
		)
		if err := rows.Scan(
			&ci.ID, &ci.SessionID, &ci.ProductID, &ci.Quantity, &ci.PriceSnapshot, &ci.IsSavedForLater,
			&pid, &name, &price, &cat, &desc, &image, &created,
		); err != nil {
			return nil, mapError("scan cart item", err)
		}
		if pid.Valid {
			ci.Product = &models.Product{
				ID:          pid.UUID,
				Name:        name.String,
				Price:       price.Decimal,
				Category:    cat.String,
				Description: desc.String,
				Image:       image.String,
				CreatedAt:   created.Time,
			}
		}
		items = append(items, ci)
	}
	return items, mapError("list cart items", rows.Err())
}

func (r *cartItemRepo) Find(ctx context.Context, sessionID, productID uuid.UUID) (*models.CartItem, error) {
	var ci models.CartItem
	err := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, product_id, quantity, price_snapshot, is_saved_for_later
		FROM cart_items
		WHERE session_id = $1 AND product_id = $2
		LIMIT 1
	`, sessionID, productID).Scan(&ci.ID, &ci.SessionID, &ci.ProductID, &ci.Quantity, &ci.PriceSnapshot, &ci.IsSavedForLater)
	if err != nil {
		return nil, mapError("find cart item", err)
	}
	return &ci, nil
}

func (r *cartItemRepo) Create(ctx context.Context, item *models.CartItem) error {
	if item == nil || item.Quantity <= 0 {
		return store.ErrInvalidInput
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (id, session_id, product_id, quantity, price_snapshot, is_saved_for_later)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.SessionID, item.ProductID, item.Quantity, item.PriceSnapshot, item.IsSavedForLater)
	return mapError("create cart item", err)
}

func (r *cartItemRepo) Update(ctx context.Context, item *models.CartItem) error {
	if item == nil || item.Quantity <= 0 {
		return store.ErrInvalidInput
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE cart_items
		SET quantity = $1, price_snapshot = $2, is_saved_for_later = $3
		WHERE id = $4
	`, item.Quantity, item.PriceSnapshot, item.IsSavedForLater, item.ID)
	if err != nil {
		return mapError("update cart item", err)
	}
	return requireAffected(res, "update cart item")
}

func (r *cartItemRepo) SetQuantity(ctx context.Context, sessionID, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return store.ErrInvalidInput
	}
	_, err := r.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1 WHERE session_id = $2 AND product_id = $3",
		quantity, sessionID, productID,
	)
	return mapError("set cart quantity", err)
}

func (r *cartItemRepo) SetSavedForLater(ctx context.Context, sessionID, productID uuid.UUID, saved bool) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE cart_items SET is_saved_for_later = $1 WHERE session_id = $2 AND product_id = $3",
		saved, sessionID, productID,
	)
	return mapError("set saved for later", err)
}

func (r *cartItemRepo) Delete(ctx context.Context, sessionID, productID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE session_id = $1 AND product_id = $2", sessionID, productID,
	)
	return mapError("delete cart item", err)
}

func (r *cartItemRepo) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM cart_items WHERE session_id = $1", sessionID)
	return mapError("clear cart", err)
}
