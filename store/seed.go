package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/models"
)

// Catalog is the starter product range.
var Catalog = []models.Product{
	{
		Name:        "Classic White T-Shirt",
		Price:       decimal.NewFromInt(15000),
		Category:    "Clothes",
		Image:       "https://images.unsplash.com/photo-1521572163474-6864f9cf17ab?w=500",
		Description: "Premium cotton white t-shirt for everyday wear",
	},
	{
		Name:        "Denim Jacket",
		Price:       decimal.NewFromInt(45000),
		Category:    "Clothes",
		Image:       "https://images.unsplash.com/photo-1551537482-f2075a1d41f2?w=500",
		Description: "Classic denim jacket perfect for any season",
	},
	{
		Name:        "Silver Necklace",
		Price:       decimal.NewFromInt(25000),
		Category:    "Accessories",
		Image:       "https://images.unsplash.com/photo-1599643478518-a784e5dc4c8f?w=500",
		Description: "Elegant silver necklace with pendant",
	},
	{
		Name:        "Leather Watch",
		Price:       decimal.NewFromInt(35000),
		Category:    "Accessories",
		Image:       "https://images.unsplash.com/photo-1524592094714-0f0654e20314?w=500",
		Description: "Classic leather watch with gold details",
	},
	{
		Name:        "Black Leather Bag",
		Price:       decimal.NewFromInt(55000),
		Category:    "Accessories",
		Image:       "https://images.unsplash.com/photo-1548036328-c9fa89d128fa?w=500",
		Description: "Stylish black leather bag for everyday use",
	},
	{
		Name:        "Striped Polo Shirt",
		Price:       decimal.NewFromInt(18000),
		Category:    "Clothes",
		Image:       "https://images.unsplash.com/photo-1576566588028-4147f3842f27?w=500",
		Description: "Comfortable striped polo shirt for casual wear",
	},
}

// SeedCatalog inserts every Catalog product whose name is not in repo yet and
// returns how many were added.
func SeedCatalog(ctx context.Context, repo ProductRepository) (int, error) {
	existing, err := repo.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[strings.ToLower(p.Name)] = true
	}

	added := 0
	for _, p := range Catalog {
		if have[strings.ToLower(p.Name)] {
			continue
		}
		p := p
		if err := repo.Create(ctx, &p); err != nil {
			return added, fmt.Errorf("seed %s: %w", p.Name, err)
		}
		added++
	}
	return added, nil
}
