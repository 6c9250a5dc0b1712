package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"storefront/models"
	"storefront/store"
)

type orderRepo struct {
	db *sql.DB
}

const orderSelect = `
	SELECT id, user_id, total, status, delivery_name, delivery_phone, delivery_address,
		delivery_state, payment_ref, payment_method, created_at
	FROM orders
`

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.UserID, &o.Total, &o.Status, &o.DeliveryName, &o.DeliveryPhone,
		&o.DeliveryAddress, &o.DeliveryState, &o.PaymentRef, &o.PaymentMethod, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.Items = []models.OrderItem{}
	return &o, nil
}

func (r *orderRepo) Create(ctx context.Context, o *models.Order) error {
	if o == nil || o.UserID == "" {
		return store.ErrInvalidInput
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = models.OrderPending
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO orders (id, user_id, total, status, delivery_name, delivery_phone,
			delivery_address, delivery_state, payment_ref, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, o.ID, o.UserID, o.Total, o.Status, o.DeliveryName, o.DeliveryPhone,
		o.DeliveryAddress, o.DeliveryState, o.PaymentRef, o.PaymentMethod,
	).Scan(&o.CreatedAt)
	return mapError("create order", err)
}

// AddItems inserts all lines of an order in one transaction.
func (r *orderRepo) AddItems(ctx context.Context, orderID uuid.UUID, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError("begin add order items", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO order_items (id, order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return mapError("prepare order items", err)
	}
	defer stmt.Close()

	for i := range items {
		if items[i].Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive", store.ErrInvalidInput)
		}
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
		items[i].OrderID = orderID
		if _, err := stmt.ExecContext(ctx, items[i].ID, orderID, items[i].ProductID, items[i].Quantity, items[i].Price); err != nil {
			return mapError("insert order item", err)
		}
	}
	return mapError("commit order items", tx.Commit())
}

func (r *orderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, orderSelect+" WHERE id = $1", id))
	if err != nil {
		return nil, mapError("get order", err)
	}
	orders := []models.Order{*o}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *orderRepo) GetAll(ctx context.Context) ([]models.Order, error) {
	return r.list(ctx, orderSelect+" ORDER BY created_at DESC")
}

func (r *orderRepo) GetByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return r.list(ctx, orderSelect+" WHERE user_id = $1 ORDER BY created_at DESC", userID)
}

func (r *orderRepo) list(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list orders", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, mapError("scan order", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list orders", err)
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the lines of every order in one query, joined with the
// product name and image when the product still exists.
func (r *orderRepo) attachItems(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID.String()
		index[o.ID] = i
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price,
			COALESCE(p.name, ''), COALESCE(p.image, '')
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1::uuid[])
		ORDER BY oi.order_id, oi.id
	`, pq.Array(ids))
	if err != nil {
		return mapError("list order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it models.OrderItem
		var pid uuid.NullUUID
		if err := rows.Scan(&it.ID, &it.OrderID, &pid, &it.Quantity, &it.Price, &it.ProductName, &it.ProductImage); err != nil {
			return mapError("scan order item", err)
		}
		it.ProductID = pid.UUID
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return mapError("list order items", rows.Err())
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error {
	if !status.Valid() {
		return store.ErrInvalidInput
	}
	res, err := r.db.ExecContext(ctx, "UPDATE orders SET status = $1 WHERE id = $2", status, id)
	if err != nil {
		return mapError("update order status", err)
	}
	return requireAffected(res, "update order status")
}
