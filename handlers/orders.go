package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"storefront/cart"
	"storefront/models"
	"storefront/payment"
)

const (
	MsgPaymentSuccessful = "Payment successful! Your order has been placed."
	MsgPaymentClosed     = "Payment window closed."
	MsgPaymentFailed     = "Payment was not successful. Please try again."
	MsgOrderFailed       = "Payment received but your order could not be recorded. Please contact support."
	MsgCartEmpty         = "Your cart is empty"
	MsgPaymentPending    = "Payment is still being confirmed."
	MsgPaymentSettling   = "Payment is already being processed."
)

type checkoutRequest struct {
	Delivery  models.DeliveryDetails `json:"delivery"`
	Reference string                 `json:"reference,omitempty"`
}

type checkoutResponse struct {
	*payment.Checkout
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type paymentResponse struct {
	*payment.Result
	Message string `json:"message"`
}

// CheckoutHandler opens a hosted checkout for the caller's active items. When
// the provider confirms payment the order is recorded and the cart cleared.
func CheckoutHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		if _, ok := d.Payments.Gateway(provider); !ok {
			writeError(w, http.StatusNotFound, "unknown_gateway", "unknown payment provider", nil)
			return
		}
		var req checkoutRequest
		if !decodeValid(w, r, &req) {
			return
		}
		h, ok := openCart(d, w, r)
		if !ok {
			return
		}
		if h.Count() == 0 {
			writeError(w, http.StatusBadRequest, "empty_cart", MsgCartEmpty, nil)
			return
		}

		user := currentUser(r)
		total := h.Subtotal()
		paid := append([]models.CartItem(nil), h.State().Items...)
		delivery := req.Delivery
		logger := d.Logger.WithFields(logrus.Fields{"component": "checkout", "user_id": user.ID, "gateway": provider})

		checkout, err := d.Payments.Open(r.Context(), provider, payment.Request{
			Reference: req.Reference,
			Amount:    total,
			Currency:  d.Currency,
			Customer: payment.Customer{
				Name:  delivery.Name,
				Phone: delivery.Phone,
			},
			RedirectURL: d.BaseURL + "/api/payments/" + provider + "/callback",
		}, user, payment.Callbacks{
			OnSuccess: func(ctx context.Context, res *payment.Result) error {
				details := delivery
				details.PaymentMethod = res.Gateway
				details.PaymentRef = res.ProviderRef
				if details.PaymentRef == "" {
					details.PaymentRef = res.Reference
				}
				return placeOrder(ctx, d, userID(user.ID), paid, total, &details, logger)
			},
			OnClose: func(ctx context.Context) {
				logger.Info("Payment window closed")
			},
		})
		switch {
		case errors.Is(err, payment.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, "invalid_amount", err.Error(), nil)
			return
		case errors.Is(err, payment.ErrDuplicateReference):
			writeError(w, http.StatusConflict, "duplicate_reference", err.Error(), nil)
			return
		case err != nil:
			writeError(w, http.StatusBadGateway, "gateway_error", "failed to open checkout", nil)
			return
		}
		writeJSON(w, http.StatusOK, checkoutResponse{Checkout: checkout, Amount: total.StringFixed(2), Currency: d.Currency})
	}
}

// placeOrder records the lines that were paid for as an order. An unchanged
// cart is emptied; a cart changed during checkout only loses the paid lines.
func placeOrder(ctx context.Context, d *Deps, owner cart.Identity, paid []models.CartItem, total decimal.Decimal, details *models.DeliveryDetails, logger logrus.FieldLogger) error {
	h := d.cartHolder(owner)
	if err := h.FetchCart(ctx); err != nil {
		return err
	}
	order, err := h.ProcessPaymentFor(ctx, paid, total, details)
	if err != nil {
		return err
	}

	log := logger.WithField("order_id", order.ID)
	if cart.SameItems(h.State().Items, paid) {
		err = h.ClearCart(ctx)
	} else {
		log.Warn("Cart changed during checkout")
		err = h.RemovePaid(ctx, paid)
	}
	if err != nil {
		log.WithError(err).Warn("Order placed but cart not cleared")
	}
	log.Info("Order placed")
	return nil
}

func writePaymentResult(w http.ResponseWriter, res *payment.Result, err error) {
	switch {
	case errors.Is(err, payment.ErrUnknownCheckout):
		writeError(w, http.StatusNotFound, "unknown_checkout", err.Error(), nil)
	case errors.Is(err, payment.ErrCheckoutSettling):
		writeError(w, http.StatusConflict, "checkout_settling", MsgPaymentSettling, nil)
	case res != nil && err != nil:
		writeError(w, http.StatusInternalServerError, "order_failed", MsgOrderFailed, map[string]any{"reference": res.Reference})
	case err != nil:
		writeError(w, http.StatusBadGateway, "gateway_error", "failed to verify payment", nil)
	default:
		msg := MsgPaymentFailed
		switch res.Status {
		case payment.StatusSuccessful:
			msg = MsgPaymentSuccessful
		case payment.StatusCancelled:
			msg = MsgPaymentClosed
		case payment.StatusPending:
			msg = MsgPaymentPending
		}
		writeJSON(w, http.StatusOK, paymentResponse{Result: res, Message: msg})
	}
}

// PaymentCallbackHandler is where the hosted page sends the shopper back.
// Flutterwave reports tx_ref, Coinbase our own reference.
func PaymentCallbackHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		reference := q.Get("tx_ref")
		if reference == "" {
			reference = q.Get("reference")
		}
		if reference == "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "reference is required", nil)
			return
		}
		status := payment.Status(q.Get("status"))
		if status != payment.StatusCancelled {
			status = payment.StatusPending
		}
		res, err := d.Payments.Complete(r.Context(), reference, status)
		writePaymentResult(w, res, err)
	}
}

func CoinbaseWebhookHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Coinbase == nil {
			writeError(w, http.StatusNotFound, "unknown_gateway", "coinbase is not configured", nil)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
			return
		}
		event, err := d.Coinbase.ParseWebhook(body, r.Header.Get(payment.CoinbaseSignatureHeader))
		if errors.Is(err, payment.ErrBadSignature) {
			writeError(w, http.StatusUnauthorized, "bad_signature", err.Error(), nil)
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
			return
		}

		status := event.Status()
		if status == payment.StatusPending || !d.Payments.Pending(event.Reference) {
			w.WriteHeader(http.StatusOK)
			return
		}
		res, err := d.Payments.Complete(r.Context(), event.Reference, status)
		if err != nil {
			d.Logger.WithError(err).WithField("reference", event.Reference).Error("Error completing coinbase checkout")
			writePaymentResult(w, res, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func ListOrdersHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := d.Backend.Orders.GetByUser(r.Context(), currentUser(r).ID)
		if err != nil {
			writeStoreError(w, err, "failed to get orders")
			return
		}
		if orders == nil {
			orders = []models.Order{}
		}
		writeJSON(w, http.StatusOK, orders)
	}
}
