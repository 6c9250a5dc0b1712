package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCoinbaseServer(t *testing.T, lastStatus string) *httptest.Server {
	t.Helper()
	charge := func(reference string) map[string]interface{} {
		return map[string]interface{}{
			"code":       "CHRG42",
			"hosted_url": "https://commerce.coinbase.com/charges/CHRG42",
			"metadata":   map[string]string{"reference": reference},
			"pricing": map[string]interface{}{
				"local": map[string]string{"amount": "30000.00", "currency": "NGN"},
			},
			"timeline": []map[string]string{{"status": "NEW"}, {"status": lastStatus}},
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/charges", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cc-key", r.Header.Get("X-CC-Api-Key"))
		var body struct {
			PricingType string            `json:"pricing_type"`
			Metadata    map[string]string `json:"metadata"`
			RedirectURL string            `json:"redirect_url"`
			CancelURL   string            `json:"cancel_url"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "fixed_price", body.PricingType)
		assert.Contains(t, body.RedirectURL, "status=successful")
		assert.Contains(t, body.CancelURL, "status=cancelled")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"data": charge(body.Metadata["reference"])})
	})
	mux.HandleFunc("/charges/CHRG42", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"data": charge("order-1")})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCoinbaseInitializeAndVerify(t *testing.T) {
	tests := []struct {
		last string
		want Status
	}{
		{"COMPLETED", StatusSuccessful},
		{"EXPIRED", StatusCancelled},
		{"PENDING", StatusPending},
		{"UNRESOLVED", StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.last, func(t *testing.T) {
			srv := newCoinbaseServer(t, tt.last)
			cb := NewCoinbase(CoinbaseConfig{APIKey: "cc-key", BaseURL: srv.URL})

			checkout, err := cb.Initialize(context.Background(), Request{
				Reference:   "order-1",
				Amount:      decimal.NewFromInt(30000),
				Currency:    "NGN",
				RedirectURL: "http://shop.local/api/payments/coinbase/callback",
			})
			require.NoError(t, err)
			assert.Equal(t, "CHRG42", checkout.ProviderRef)

			res, err := cb.Verify(context.Background(), checkout)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Status)
			assert.Equal(t, "order-1", res.Reference)
			assert.True(t, decimal.NewFromInt(30000).Equal(res.Amount))
		})
	}
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCoinbaseParseWebhook(t *testing.T) {
	cb := NewCoinbase(CoinbaseConfig{WebhookSecret: "whsec"})
	body := []byte(`{"event":{"type":"charge:confirmed","data":{"code":"CHRG42","metadata":{"reference":"order-1"}}}}`)

	ev, err := cb.ParseWebhook(body, sign("whsec", body))
	require.NoError(t, err)
	assert.Equal(t, "order-1", ev.Reference)
	assert.Equal(t, "CHRG42", ev.ChargeID)
	assert.Equal(t, StatusSuccessful, ev.Status())

	_, err = cb.ParseWebhook(body, sign("other", body))
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = NewCoinbase(CoinbaseConfig{}).ParseWebhook(body, sign("", body))
	assert.ErrorIs(t, err, ErrBadSignature)
}
