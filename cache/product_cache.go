package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"storefront/models"
	"storefront/store"
)

const (
	keyAllProducts = "products:all"
	notFoundMarker = "notfound"
	defaultTTL     = 5 * time.Minute
	notFoundTTL    = 1 * time.Minute
)

// CachedProductRepository is a read-through cache over a ProductRepository.
// Redis failures are logged and fall through to the wrapped repository.
type CachedProductRepository struct {
	realRepo store.ProductRepository
	redis    *redis.Client
	ttl      time.Duration
	logger   logrus.FieldLogger
}

func NewCachedProductRepository(realRepo store.ProductRepository, rdb *redis.Client, ttl time.Duration, logger logrus.FieldLogger) *CachedProductRepository {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CachedProductRepository{
		realRepo: realRepo,
		redis:    rdb,
		ttl:      ttl,
		logger:   logger.WithField("component", "product-cache"),
	}
}

func productKey(id uuid.UUID) string { return "product:" + id.String() }

func categoryKey(category string) string {
	return "products:category:" + strings.ToLower(category)
}

func (c *CachedProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	key := productKey(id)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(data) == notFoundMarker {
			return nil, store.ErrNotFound
		}
		var product models.Product
		if err := json.Unmarshal(data, &product); err == nil {
			return &product, nil
		}
		c.logger.WithError(err).WithField("key", key).Warn("Failed to unmarshal cached product (continuing with DB)")
	case errors.Is(err, redis.Nil):
	default:
		c.logger.WithError(err).Warn("Redis error (continuing with DB)")
	}

	product, err := c.realRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if setErr := c.redis.Set(ctx, key, notFoundMarker, notFoundTTL).Err(); setErr != nil {
				c.logger.WithError(setErr).Warn("Failed to cache notfound")
			}
		}
		return nil, err
	}
	c.set(ctx, key, product)
	return product, nil
}

func (c *CachedProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	return c.list(ctx, keyAllProducts, func() ([]models.Product, error) {
		return c.realRepo.GetAll(ctx)
	})
}

func (c *CachedProductRepository) GetByCategory(ctx context.Context, category string) ([]models.Product, error) {
	return c.list(ctx, categoryKey(category), func() ([]models.Product, error) {
		return c.realRepo.GetByCategory(ctx, category)
	})
}

func (c *CachedProductRepository) list(ctx context.Context, key string, load func() ([]models.Product, error)) ([]models.Product, error) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err == nil {
		var products []models.Product
		if err := json.Unmarshal(data, &products); err == nil {
			return products, nil
		}
		c.logger.WithField("key", key).Warn("Failed to unmarshal cached products (continuing with DB)")
	} else if !errors.Is(err, redis.Nil) {
		c.logger.WithError(err).Warn("Redis error (continuing with DB)")
	}

	products, err := load()
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, products)
	return products, nil
}

func (c *CachedProductRepository) Create(ctx context.Context, product *models.Product) error {
	if err := c.realRepo.Create(ctx, product); err != nil {
		return err
	}
	c.invalidate(ctx, product.ID, product.Category)
	return nil
}

func (c *CachedProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	category := ""
	if product, err := c.realRepo.GetByID(ctx, id); err == nil {
		category = product.Category
	}
	err := c.realRepo.Delete(ctx, id)
	c.invalidate(ctx, id, category)
	return err
}

func (c *CachedProductRepository) AddImages(ctx context.Context, productID uuid.UUID, urls []string) ([]models.ProductImage, error) {
	images, err := c.realRepo.AddImages(ctx, productID, urls)
	category := ""
	if product, getErr := c.realRepo.GetByID(ctx, productID); getErr == nil {
		category = product.Category
	}
	c.invalidate(ctx, productID, category)
	return images, err
}

func (c *CachedProductRepository) Images(ctx context.Context, productID uuid.UUID) ([]models.ProductImage, error) {
	return c.realRepo.Images(ctx, productID)
}

func (c *CachedProductRepository) set(ctx context.Context, key string, v interface{}) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to marshal cache entry")
		return
	}
	if err := c.redis.Set(ctx, key, jsonData, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to cache entry")
	}
}

func (c *CachedProductRepository) invalidate(ctx context.Context, id uuid.UUID, category string) {
	keys := []string{productKey(id), keyAllProducts}
	if category != "" {
		keys = append(keys, categoryKey(category))
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.WithError(err).WithField("keys", fmt.Sprint(keys)).Warn("Failed to invalidate product cache")
	}
}
