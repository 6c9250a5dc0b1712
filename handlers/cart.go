package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/cart"
	"storefront/models"
)

// userID identifies a cart owner known only by id, as in payment callbacks.
type userID string

func (u userID) UserID() string { return string(u) }

type cartView struct {
	cart.State
	Subtotal decimal.Decimal `json:"subtotal"`
	Count    int             `json:"count"`
}

func newCartView(h *cart.Holder) cartView {
	st := h.State()
	if st.Items == nil {
		st.Items = []models.CartItem{}
	}
	if st.SavedItems == nil {
		st.SavedItems = []models.CartItem{}
	}
	return cartView{State: st, Subtotal: h.Subtotal(), Count: h.Count()}
}

func writeCartError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, cart.ErrNoActiveSession) {
		writeError(w, http.StatusConflict, "no_session", cart.MsgNoActiveSession, nil)
		return
	}
	writeStoreError(w, err, fallback)
}

// openCart loads the caller's cart, creating the shopping session on first use.
func openCart(d *Deps, w http.ResponseWriter, r *http.Request) (*cart.Holder, bool) {
	h := d.cartHolder(d.authHolder(r))
	if err := h.FetchCart(r.Context()); err != nil {
		writeCartError(w, err, "Error fetching cart")
		return nil, false
	}
	return h, true
}

func CartHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := openCart(d, w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, newCartView(h))
	}
}

func AddItemHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CartRequest
		if !decodeValid(w, r, &req) {
			return
		}
		product, err := d.Products.GetByID(r.Context(), req.ProductID)
		if err != nil {
			writeStoreError(w, err, "failed to get product")
			return
		}
		h, ok := openCart(d, w, r)
		if !ok {
			return
		}
		if err := h.AddToCart(r.Context(), product, req.Quantity); err != nil {
			writeCartError(w, err, "Error adding to cart")
			return
		}
		writeJSON(w, http.StatusOK, newCartView(h))
	}
}

func UpdateItemHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, ok := uuidParam(w, r, "productID")
		if !ok {
			return
		}
		var req models.QuantityRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		cartAction(d, w, r, "Error updating quantity", func(h *cart.Holder) error {
			return h.UpdateQuantity(r.Context(), productID, req.Quantity)
		})
	}
}

func RemoveItemHandler(d *Deps) http.HandlerFunc {
	return productAction(d, "Error removing from cart", (*cart.Holder).RemoveFromCart)
}

func SaveItemHandler(d *Deps) http.HandlerFunc {
	return productAction(d, "Error saving for later", (*cart.Holder).SaveForLater)
}

func MoveItemHandler(d *Deps) http.HandlerFunc {
	return productAction(d, "Error moving to cart", (*cart.Holder).MoveToCart)
}

func ClearCartHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartAction(d, w, r, "Error clearing cart", func(h *cart.Holder) error {
			return h.ClearCart(r.Context())
		})
	}
}

func productAction(d *Deps, failure string, op func(*cart.Holder, context.Context, uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, ok := uuidParam(w, r, "productID")
		if !ok {
			return
		}
		cartAction(d, w, r, failure, func(h *cart.Holder) error {
			return op(h, r.Context(), productID)
		})
	}
}

func cartAction(d *Deps, w http.ResponseWriter, r *http.Request, failure string, op func(*cart.Holder) error) {
	h, ok := openCart(d, w, r)
	if !ok {
		return
	}
	if err := op(h); err != nil {
		writeCartError(w, err, failure)
		return
	}
	writeJSON(w, http.StatusOK, newCartView(h))
}
