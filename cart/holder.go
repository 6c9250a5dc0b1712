// Package cart keeps one user's shopping session and its items in sync with
// the store.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"storefront/models"
	"storefront/state"
	"storefront/store"
)

// Identity tells the holder who is signed in. An empty id means nobody.
type Identity interface {
	UserID() string
}

type State struct {
	Session    *models.ShoppingSession `json:"session"`
	Items      []models.CartItem       `json:"items"`
	SavedItems []models.CartItem       `json:"saved_items"`
	Loading    bool                    `json:"loading"`
}

// Holder never patches its state after a write; every mutation is followed by
// a full FetchCart.
type Holder struct {
	identity Identity
	sessions store.SessionRepository
	items    store.CartItemRepository
	orders   store.OrderRepository
	logger   logrus.FieldLogger

	mu    sync.Mutex
	state *state.Observable[State]
}

func NewHolder(identity Identity, sessions store.SessionRepository, items store.CartItemRepository, orders store.OrderRepository, logger logrus.FieldLogger) *Holder {
	return &Holder{
		identity: identity,
		sessions: sessions,
		items:    items,
		orders:   orders,
		logger:   logger.WithField("component", "cart"),
		state:    state.New(State{}),
	}
}

func (h *Holder) State() State { return h.state.Get() }

func (h *Holder) Subscribe(fn func(State)) func() { return h.state.Subscribe(fn) }

// Subtotal sums the line totals of the active items.
func (h *Holder) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range h.state.Get().Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// Count is the number of units across the active items.
func (h *Holder) Count() int {
	n := 0
	for _, it := range h.state.Get().Items {
		n += it.Quantity
	}
	return n
}

func (h *Holder) InitializeSession(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.initializeSession(ctx)
}

func (h *Holder) initializeSession(ctx context.Context) error {
	userID := h.identity.UserID()
	if userID == "" {
		h.reset()
		return nil
	}

	session, err := h.sessions.FindActive(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		session = &models.ShoppingSession{UserID: userID, Status: models.SessionActive}
		err = h.sessions.Create(ctx, session)
	}
	if err != nil {
		h.logger.WithError(err).Error("Error initializing session")
		h.reset()
		return fmt.Errorf("initialize session: %w", err)
	}

	h.state.Update(func(s State) State {
		s.Session = session
		return s
	})
	return nil
}

func (h *Holder) FetchCart(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fetchCart(ctx)
}

// fetchCart keeps the previous items when the read fails.
func (h *Holder) fetchCart(ctx context.Context) error {
	if h.identity.UserID() == "" {
		h.reset()
		return nil
	}
	if h.state.Get().Session == nil {
		if err := h.initializeSession(ctx); err != nil {
			return err
		}
	}
	session := h.state.Get().Session
	if session == nil {
		h.state.Update(func(s State) State {
			s.Items, s.SavedItems = nil, nil
			return s
		})
		return nil
	}

	rows, err := h.items.ListBySession(ctx, session.ID)
	if err != nil {
		h.logger.WithError(err).WithField("session_id", session.ID).Error("Error fetching cart")
		return fmt.Errorf("fetch cart: %w", err)
	}

	items, saved := []models.CartItem{}, []models.CartItem{}
	for _, row := range rows {
		if row.Product == nil {
			continue
		}
		if row.IsSavedForLater {
			saved = append(saved, row)
		} else {
			items = append(items, row)
		}
	}
	h.state.Update(func(s State) State {
		s.Items, s.SavedItems = items, saved
		return s
	})
	return nil
}

// AddToCart adds quantity units of product, merging into an existing row for
// the same product. A quantity below one adds a single unit.
func (h *Holder) AddToCart(ctx context.Context, product *models.Product, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}
	return h.mutate(ctx, "Error adding to cart", true, func(session *models.ShoppingSession) error {
		existing, err := h.items.Find(ctx, session.ID, product.ID)
		switch {
		case err == nil:
			existing.Quantity += quantity
			existing.IsSavedForLater = false
			existing.PriceSnapshot = product.Price
			return h.items.Update(ctx, existing)
		case errors.Is(err, store.ErrNotFound):
			return h.items.Create(ctx, &models.CartItem{
				SessionID:     session.ID,
				ProductID:     product.ID,
				Quantity:      quantity,
				PriceSnapshot: product.Price,
			})
		default:
			return err
		}
	})
}

func (h *Holder) RemoveFromCart(ctx context.Context, productID uuid.UUID) error {
	return h.mutate(ctx, "Error removing from cart", false, func(session *models.ShoppingSession) error {
		return h.items.Delete(ctx, session.ID, productID)
	})
}

// UpdateQuantity sets the quantity of a product's row. Zero or less removes it.
func (h *Holder) UpdateQuantity(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return h.RemoveFromCart(ctx, productID)
	}
	return h.mutate(ctx, "Error updating quantity", false, func(session *models.ShoppingSession) error {
		return h.items.SetQuantity(ctx, session.ID, productID, quantity)
	})
}

func (h *Holder) SaveForLater(ctx context.Context, productID uuid.UUID) error {
	return h.mutate(ctx, "Error saving for later", false, func(session *models.ShoppingSession) error {
		return h.items.SetSavedForLater(ctx, session.ID, productID, true)
	})
}

func (h *Holder) MoveToCart(ctx context.Context, productID uuid.UUID) error {
	return h.mutate(ctx, "Error moving to cart", false, func(session *models.ShoppingSession) error {
		return h.items.SetSavedForLater(ctx, session.ID, productID, false)
	})
}

// ClearCart deletes every row of the session, saved items included.
func (h *Holder) ClearCart(ctx context.Context) error {
	return h.mutate(ctx, "Error clearing cart", false, func(session *models.ShoppingSession) error {
		return h.items.DeleteBySession(ctx, session.ID)
	})
}

// RemovePaid takes the paid quantities off the session's rows. Rows or units
// added after the snapshot stay in the cart.
func (h *Holder) RemovePaid(ctx context.Context, paid []models.CartItem) error {
	return h.mutate(ctx, "Error removing paid items", false, func(session *models.ShoppingSession) error {
		for _, p := range paid {
			row, err := h.items.Find(ctx, session.ID, p.ProductID)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if row.Quantity <= p.Quantity {
				err = h.items.Delete(ctx, session.ID, p.ProductID)
			} else {
				err = h.items.SetQuantity(ctx, session.ID, p.ProductID, row.Quantity-p.Quantity)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// SameItems reports whether a and b hold the same products in the same
// quantities at the same prices, in any order.
func SameItems(a, b []models.CartItem) bool {
	if len(a) != len(b) {
		return false
	}
	index := make(map[uuid.UUID]models.CartItem, len(a))
	for _, it := range a {
		index[it.ProductID] = it
	}
	for _, it := range b {
		other, ok := index[it.ProductID]
		if !ok || other.Quantity != it.Quantity || !other.PriceSnapshot.Equal(it.PriceSnapshot) {
			return false
		}
		delete(index, it.ProductID)
	}
	return true
}

// mutate runs write against the current session and re-syncs afterwards.
// Without a session it is a no-op unless initialize is set, in which case a
// session is created first and its absence is an error.
func (h *Holder) mutate(ctx context.Context, failure string, initialize bool, write func(*models.ShoppingSession) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.setLoading(true)
	defer h.setLoading(false)

	if initialize && h.state.Get().Session == nil {
		if err := h.initializeSession(ctx); err != nil {
			return err
		}
	}
	session := h.state.Get().Session
	if session == nil {
		if initialize {
			h.logger.WithError(ErrNoActiveSession).Error(failure)
			return ErrNoActiveSession
		}
		return nil
	}

	if err := write(session); err != nil {
		h.logger.WithError(err).WithField("session_id", session.ID).Error(failure)
		return fmt.Errorf("%s: %w", failure, err)
	}
	return h.fetchCart(ctx)
}

// ProcessPayment records an order for the active items and returns it. The
// cart is left as is. The order and its items are separate writes; when the
// items fail the order survives and a *PartialOrderError is returned.
func (h *Holder) ProcessPayment(ctx context.Context, total decimal.Decimal, details *models.DeliveryDetails) (*models.Order, error) {
	return h.processPayment(ctx, nil, total, details)
}

// ProcessPaymentFor is ProcessPayment for the given lines instead of the
// current active items.
func (h *Holder) ProcessPaymentFor(ctx context.Context, items []models.CartItem, total decimal.Decimal, details *models.DeliveryDetails) (*models.Order, error) {
	if items == nil {
		items = []models.CartItem{}
	}
	return h.processPayment(ctx, items, total, details)
}

func (h *Holder) processPayment(ctx context.Context, items []models.CartItem, total decimal.Decimal, details *models.DeliveryDetails) (*models.Order, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.setLoading(true)
	defer h.setLoading(false)

	current := h.state.Get()
	if current.Session == nil {
		h.logger.WithError(ErrNoActiveSession).Error("Error processing payment")
		return nil, ErrNoActiveSession
	}
	if items == nil {
		items = current.Items
	}

	order := &models.Order{
		UserID: current.Session.UserID,
		Total:  total,
		Status: models.OrderPending,
	}
	if details != nil {
		order.DeliveryName = details.Name
		order.DeliveryPhone = details.Phone
		order.DeliveryAddress = details.Address
		order.DeliveryState = details.State
		order.PaymentRef = details.PaymentRef
		order.PaymentMethod = details.PaymentMethod
	}
	if err := h.orders.Create(ctx, order); err != nil {
		h.logger.WithError(err).Error("Error processing payment")
		return nil, fmt.Errorf("create order: %w", err)
	}

	lines := make([]models.OrderItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, models.OrderItem{
			OrderID:   order.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.PriceSnapshot,
		})
	}
	if err := h.orders.AddItems(ctx, order.ID, lines); err != nil {
		h.logger.WithError(err).WithField("order_id", order.ID).Error("Order created without items")
		return order, &PartialOrderError{Order: order, Err: err}
	}
	order.Items = lines
	return order, nil
}

func (h *Holder) setLoading(v bool) {
	h.state.Update(func(s State) State {
		s.Loading = v
		return s
	})
}

func (h *Holder) reset() {
	h.state.Update(func(s State) State {
		return State{Loading: s.Loading}
	})
}
