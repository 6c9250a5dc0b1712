package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/models"
	"storefront/payment"
)

var delivery = map[string]string{
	"name":    "Ada Obi",
	"phone":   "+2348012345678",
	"address": "12 Marina Road",
	"state":   "Lagos",
}

func (f *fixture) checkout(token, reference string) *httptest.ResponseRecorder {
	f.t.Helper()
	return f.do(http.MethodPost, "/api/checkout/stub", token, map[string]any{
		"delivery":  delivery,
		"reference": reference,
	})
}

// openCheckout starts a checkout and returns the reference the provider was given.
func (f *fixture) openCheckout(token, reference string) string {
	f.t.Helper()
	rec := f.checkout(token, reference)
	require.Equal(f.t, http.StatusOK, rec.Code, rec.Body.String())
	ref, _ := decode[map[string]any](f.t, rec)["reference"].(string)
	require.NotEmpty(f.t, ref)
	return ref
}

func coinbaseEvent(kind, reference string) []byte {
	return []byte(fmt.Sprintf(`{"event":{"type":"charge:%s","data":{"code":"CHRG1","metadata":{"reference":%q}}}}`, kind, reference))
}

func TestCheckoutSuccessPlacesOrderAndClearsCart(t *testing.T) {
	f := newFixture(t)
	token := f.register("ada@example.com").AccessToken
	shirt := f.product("Classic White T-Shirt", 15000)
	f.do(http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": shirt.ID, "quantity": 2})

	rec := f.checkout(token, "ord-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	opened := decode[map[string]any](t, rec)
	ref, _ := opened["reference"].(string)
	assert.True(t, strings.HasPrefix(ref, "ord-1-"), ref)
	assert.Equal(t, "https://pay.test/"+ref, opened["link"])
	assert.Equal(t, "30000.00", opened["amount"])
	assert.Equal(t, "NGN", opened["currency"])
	assert.Equal(t, "ada@example.com", f.gateway.lastReq.Customer.Email)
	assert.Equal(t, "Ada Obi", f.gateway.lastReq.Customer.Name)
	assert.Equal(t, "http://shop.test/api/payments/stub/callback", f.gateway.lastReq.RedirectURL)

	rec = f.do(http.MethodGet, "/api/payments/stub/callback?reference="+ref+"&status=successful", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, MsgPaymentSuccessful, decode[paymentResponse](t, rec).Message)

	rec = f.do(http.MethodGet, "/api/orders", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	orders := decode[[]models.Order](t, rec)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderPending, orders[0].Status)
	assert.Equal(t, "30000", orders[0].Total.String())
	assert.Equal(t, "stub", orders[0].PaymentMethod)
	assert.Equal(t, "stub-"+ref, orders[0].PaymentRef)
	assert.Equal(t, "Lagos", orders[0].DeliveryState)
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, 2, orders[0].Items[0].Quantity)

	rec = f.do(http.MethodGet, "/api/cart", token, nil)
	assert.Empty(t, decode[cartView](t, rec).Items)

	rec = f.do(http.MethodGet, "/api/payments/stub/callback?reference="+ref+"&status=successful", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "a checkout completes once")
}

func TestCheckoutWithoutPayment(t *testing.T) {
	tests := []struct {
		name     string
		reported string
		verified payment.Status
		message  string
	}{
		{"closed by shopper", "cancelled", payment.StatusSuccessful, MsgPaymentClosed},
		{"declined by provider", "successful", payment.StatusFailed, MsgPaymentFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.gateway.status = tt.verified
			token := f.register("ada@example.com").AccessToken
			shirt := f.product("Classic White T-Shirt", 15000)
			f.do(http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": shirt.ID})
			ref := f.openCheckout(token, "ord-9")

			rec := f.do(http.MethodGet, "/api/payments/stub/callback?tx_ref="+ref+"&status="+tt.reported, "", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.message, decode[paymentResponse](t, rec).Message)

			rec = f.do(http.MethodGet, "/api/orders", token, nil)
			assert.Empty(t, decode[[]models.Order](t, rec))
			rec = f.do(http.MethodGet, "/api/cart", token, nil)
			assert.Len(t, decode[cartView](t, rec).Items, 1, "cart is kept")
		})
	}
}

func TestCheckoutRejections(t *testing.T) {
	f := newFixture(t)
	token := f.register("ada@example.com").AccessToken

	rec := f.checkout(token, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgCartEmpty, decode[apiError](t, rec).Message)

	rec = f.do(http.MethodPost, "/api/checkout/paypal", token, map[string]any{"delivery": delivery})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	shirt := f.product("Classic White T-Shirt", 15000)
	f.do(http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": shirt.ID})
	rec = f.do(http.MethodPost, "/api/checkout/stub", token, map[string]any{
		"delivery": map[string]string{"phone": "+2348012345678", "address": "x", "state": "Lagos"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name is required", decode[apiError](t, rec).Message)

	rec = f.do(http.MethodGet, "/api/payments/stub/callback?status=successful", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func signedWebhook(f *fixture, secret string, body []byte) *httptest.ResponseRecorder {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	req := httptest.NewRequest(http.MethodPost, "/api/payments/coinbase/webhook", bytes.NewReader(body))
	req.Header.Set(payment.CoinbaseSignatureHeader, hex.EncodeToString(mac.Sum(nil)))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestCoinbaseWebhook(t *testing.T) {
	f := newFixture(t)
	token := f.register("ada@example.com").AccessToken
	shirt := f.product("Classic White T-Shirt", 15000)
	f.do(http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": shirt.ID})
	ref := f.openCheckout(token, "ord-7")

	confirmed := coinbaseEvent("confirmed", ref)

	assert.Equal(t, http.StatusUnauthorized, signedWebhook(f, "wrong", confirmed).Code)

	pending := coinbaseEvent("pending", ref)
	assert.Equal(t, http.StatusOK, signedWebhook(f, "whsec", pending).Code)
	rec := f.do(http.MethodGet, "/api/orders", token, nil)
	assert.Empty(t, decode[[]models.Order](t, rec))

	assert.Equal(t, http.StatusOK, signedWebhook(f, "whsec", confirmed).Code)
	rec = f.do(http.MethodGet, "/api/orders", token, nil)
	assert.Len(t, decode[[]models.Order](t, rec), 1)

	assert.Equal(t, http.StatusOK, signedWebhook(f, "whsec", confirmed).Code, "replays are acknowledged")
	rec = f.do(http.MethodGet, "/api/orders", token, nil)
	assert.Len(t, decode[[]models.Order](t, rec), 1)
}

func TestCheckoutRecordsOnlyPaidItems(t *testing.T) {
	f := newFixture(t)
	token := f.register("ada@example.com").AccessToken
	shirt := f.product("Classic White T-Shirt", 15000)
	watch := f.product("Smart Watch Pro", 90000)
	f.do(http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": shirt.ID})

	ref := f.openCheckout(token, "")
	f.do(http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": watch.ID})

	rec := f.do(http.MethodGet, "/api/payments/stub/callback?tx_ref="+ref+"&status=successful", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/orders", token, nil)
	orders := decode[[]models.Order](t, rec)
	require.Len(t, orders, 1)
	assert.Equal(t, "15000", orders[0].Total.String())
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, shirt.ID, orders[0].Items[0].ProductID)

	rec = f.do(http.MethodGet, "/api/cart", token, nil)
	view := decode[cartView](t, rec)
	require.Len(t, view.Items, 1, "the unpaid item stays in the cart")
	assert.Equal(t, watch.ID, view.Items[0].ProductID)
}

func TestPendingCallbackThenCoinbaseConfirmation(t *testing.T) {
	f := newFixture(t)
	token := f.register("ada@example.com").AccessToken
	shirt := f.product("Classic White T-Shirt", 15000)
	f.do(http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": shirt.ID})
	ref := f.openCheckout(token, "")

	f.gateway.status = payment.StatusPending
	rec := f.do(http.MethodGet, "/api/payments/stub/callback?reference="+ref, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, MsgPaymentPending, decode[paymentResponse](t, rec).Message)

	f.gateway.status = payment.StatusSuccessful
	require.Equal(t, http.StatusOK, signedWebhook(f, "whsec", coinbaseEvent("confirmed", ref)).Code)

	rec = f.do(http.MethodGet, "/api/orders", token, nil)
	assert.Len(t, decode[[]models.Order](t, rec), 1)
}
