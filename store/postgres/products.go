package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"storefront/models"
	"storefront/store"
)

type productRepo struct {
	db *sql.DB
}

const productSelect = `
	SELECT p.id, p.name, p.price, p.category, p.description, p.image, p.created_at,
		COALESCE(array_agg(pi.image_url ORDER BY pi.created_at) FILTER (WHERE pi.image_url IS NOT NULL), '{}')
	FROM products p
	LEFT JOIN product_images pi ON pi.product_id = p.id
`

const productGroup = `
	GROUP BY p.id, p.name, p.price, p.category, p.description, p.image, p.created_at
`

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	var p models.Product
	var images pq.StringArray
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Category, &p.Description, &p.Image, &p.CreatedAt, &images); err != nil {
		return nil, err
	}
	if len(images) > 0 {
		p.Images = []string(images)
	}
	return &p, nil
}

func (r *productRepo) Create(ctx context.Context, p *models.Product) error {
	if p == nil || p.Name == "" {
		return store.ErrInvalidInput
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO products (id, name, price, category, description, image)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, p.ID, p.Name, p.Price, p.Category, p.Description, p.Image).Scan(&p.CreatedAt)
	return mapError("create product", err)
}

func (r *productRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, productSelect+" WHERE p.id = $1 "+productGroup, id)
	p, err := scanProduct(row)
	if err != nil {
		return nil, mapError("get product", err)
	}
	return p, nil
}

func (r *productRepo) GetAll(ctx context.Context) ([]models.Product, error) {
	return r.list(ctx, productSelect+productGroup+" ORDER BY p.created_at DESC")
}

func (r *productRepo) GetByCategory(ctx context.Context, category string) ([]models.Product, error) {
	if category == "" {
		return nil, store.ErrInvalidInput
	}
	return r.list(ctx, productSelect+" WHERE lower(p.category) = lower($1) "+productGroup+" ORDER BY p.created_at DESC", category)
}

func (r *productRepo) list(ctx context.Context, query string, args ...any) ([]models.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list products", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, mapError("scan product", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list products", err)
	}
	return products, nil
}

func (r *productRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return mapError("delete product", err)
	}
	return requireAffected(res, "delete product")
}

func (r *productRepo) AddImages(ctx context.Context, productID uuid.UUID, urls []string) ([]models.ProductImage, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError("begin add images", err)
	}
	defer tx.Rollback()

	images := make([]models.ProductImage, 0, len(urls))
	for _, u := range urls {
		img := models.ProductImage{ID: uuid.New(), ProductID: productID, ImageURL: u}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO product_images (id, product_id, image_url) VALUES ($1, $2, $3)",
			img.ID, img.ProductID, img.ImageURL,
		); err != nil {
			return nil, mapError("add product image", err)
		}
		images = append(images, img)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapError("commit add images", err)
	}
	return images, nil
}

func (r *productRepo) Images(ctx context.Context, productID uuid.UUID) ([]models.ProductImage, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, product_id, image_url FROM product_images WHERE product_id = $1 ORDER BY created_at",
		productID,
	)
	if err != nil {
		return nil, mapError("list product images", err)
	}
	defer rows.Close()

	var images []models.ProductImage
	for rows.Next() {
		var img models.ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.ImageURL); err != nil {
			return nil, mapError("scan product image", err)
		}
		images = append(images, img)
	}
	return images, mapError("list product images", rows.Err())
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(op, err)
	}
	if n == 0 {
		return mapError(op, sql.ErrNoRows)
	}
	return nil
}
