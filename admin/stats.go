package admin

import (
	"context"

	"github.com/shopspring/decimal"

	"storefront/models"
)

// Stats are the dashboard totals.
type Stats struct {
	TotalSales    decimal.Decimal `json:"total_sales"`
	TotalOrders   int             `json:"total_orders"`
	PendingOrders int             `json:"pending_orders"`
	TotalProducts int             `json:"total_products"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	orders, err := s.orders.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.products.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	st := &Stats{TotalSales: decimal.Zero, TotalOrders: len(orders), TotalProducts: len(products)}
	for _, o := range orders {
		st.TotalSales = st.TotalSales.Add(o.Total)
		if o.Status == models.OrderPending {
			st.PendingOrders++
		}
	}
	return st, nil
}
