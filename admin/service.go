// Package admin implements the back office: catalog management, order
// handling and the live order feed.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"storefront/models"
	"storefront/store"
)

const ProductImagesBucket = "product-images"

const (
	MsgProductAdded        = "Product added successfully!"
	MsgProductAddFailed    = "Error adding product. Please try again."
	MsgProductDeleted      = "Product deleted successfully!"
	MsgProductDeleteFailed = "Error deleting product. Please try again."
	MsgOrderUpdated        = "Order status updated successfully!"
	MsgOrderUpdateFailed   = "Error updating order status. Please try again."
	MsgOrdersFetchFailed   = "Error fetching orders. Please refresh the page."
	MsgImageRequired       = "Please select a product image"
)

var Categories = []string{"Clothes", "Accessories", "Shoes", "Smart Watches", "Electronics"}

var (
	ErrImageRequired   = errors.New("product image required")
	ErrUnknownCategory = errors.New("unknown product category")
	ErrInvalidPrice    = errors.New("price must not be negative")
)

// Bucket is where product images are uploaded.
type Bucket interface {
	Upload(ctx context.Context, name string, r io.Reader) error
	PublicURL(name string) string
}

type Image struct {
	Filename string
	Body     io.Reader
}

type Service struct {
	products store.ProductRepository
	orders   store.OrderRepository
	images   Bucket
	logger   logrus.FieldLogger
}

func NewService(products store.ProductRepository, orders store.OrderRepository, images Bucket, logger logrus.FieldLogger) *Service {
	return &Service{
		products: products,
		orders:   orders,
		images:   images,
		logger:   logger.WithField("component", "admin"),
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.products.GetAll(ctx)
}

// CreateProduct uploads the primary image, inserts the product, then uploads
// the additional images concurrently and records them. Nothing is rolled back
// when a later step fails.
func (s *Service) CreateProduct(ctx context.Context, input models.ProductInput, primary *Image, additional []Image) (*models.Product, error) {
	if primary == nil || primary.Body == nil {
		return nil, ErrImageRequired
	}
	if !validCategory(input.Category) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, input.Category)
	}
	if input.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}

	imageURL, err := s.upload(ctx, *primary)
	if err != nil {
		s.logger.WithError(err).Error("Error adding product")
		return nil, err
	}

	product := &models.Product{
		Name:        strings.TrimSpace(input.Name),
		Price:       input.Price,
		Category:    input.Category,
		Description: input.Description,
		Image:       imageURL,
	}
	if err := s.products.Create(ctx, product); err != nil {
		s.logger.WithError(err).Error("Error adding product")
		return nil, fmt.Errorf("insert product: %w", err)
	}

	if len(additional) > 0 {
		p := pool.NewWithResults[string]().WithContext(ctx).WithCancelOnError()
		for _, img := range additional {
			img := img
			p.Go(func(ctx context.Context) (string, error) {
				return s.upload(ctx, img)
			})
		}
		urls, err := p.Wait()
		if err != nil {
			s.logger.WithError(err).WithField("product_id", product.ID).Error("Error adding product images")
			return product, fmt.Errorf("upload additional images: %w", err)
		}
		if _, err := s.products.AddImages(ctx, product.ID, urls); err != nil {
			s.logger.WithError(err).WithField("product_id", product.ID).Error("Error adding product images")
			return product, fmt.Errorf("insert product images: %w", err)
		}
		product.Images = urls
	}

	s.logger.WithField("product_id", product.ID).Info("Product added")
	return product, nil
}

func (s *Service) upload(ctx context.Context, img Image) (string, error) {
	name := fmt.Sprintf("%s-%s", uuid.NewString(), sanitizeFilename(img.Filename))
	if err := s.images.Upload(ctx, name, img.Body); err != nil {
		return "", fmt.Errorf("upload %s: %w", img.Filename, err)
	}
	return s.images.PublicURL(name), nil
}

func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.products.Delete(ctx, id); err != nil {
		s.logger.WithError(err).WithField("product_id", id).Error("Error deleting product")
		return err
	}
	return nil
}

func (s *Service) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.orders.GetAll(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Error fetching orders")
		return nil, err
	}
	return orders, nil
}

func (s *Service) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: status %q", store.ErrInvalidInput, status)
	}
	if err := s.orders.UpdateStatus(ctx, id, status); err != nil {
		s.logger.WithError(err).WithField("order_id", id).Error("Error updating order status")
		return err
	}
	return nil
}

func validCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" || name == "." || name == ".." {
		return "image"
	}
	return name
}
