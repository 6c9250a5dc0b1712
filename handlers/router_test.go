package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/admin"
	"storefront/auth"
	"storefront/models"
	"storefront/payment"
	"storefront/storage"
	"storefront/store"
	"storefront/store/memory"
)

const (
	adminEmail    = "admin@example.com"
	validPassword = "Secret123!"
)

// stubGateway settles every checkout with the status it is told to report.
type stubGateway struct {
	status  payment.Status
	lastReq payment.Request
}

func (s *stubGateway) Name() string { return "stub" }

func (s *stubGateway) Initialize(ctx context.Context, req payment.Request) (*payment.Checkout, error) {
	s.lastReq = req
	return &payment.Checkout{Gateway: "stub", Reference: req.Reference, Link: "https://pay.test/" + req.Reference}, nil
}

func (s *stubGateway) Verify(ctx context.Context, checkout *payment.Checkout) (*payment.Result, error) {
	return &payment.Result{
		Gateway:     "stub",
		Reference:   checkout.Reference,
		ProviderRef: "stub-" + checkout.Reference,
		Status:      s.status,
		Amount:      s.lastReq.Amount,
		Currency:    s.lastReq.Currency,
	}, nil
}

type fixture struct {
	t       *testing.T
	backend *store.Backend
	gateway *stubGateway
	router  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := memory.New().Backend()
	logger, _ := logtest.NewNullLogger()
	provider := auth.NewLocalProvider(backend.Users, backend.Tokens, []byte("test-secret"), time.Hour, 24*time.Hour)
	files := storage.New(afero.NewMemMapFs(), "http://shop.test")
	gateway := &stubGateway{status: payment.StatusSuccessful}

	router := NewRouter(&Deps{
		Backend:  backend,
		Auth:     provider,
		Payments: payment.NewAdapter(logger, gateway),
		Coinbase: payment.NewCoinbase(payment.CoinbaseConfig{WebhookSecret: "whsec"}),
		Admin:    admin.NewService(backend.Products, backend.Orders, files.Bucket(admin.ProductImagesBucket), logger),
		Storage:  files.Handler(),
		BaseURL:  "http://shop.test",
		IsAdmin:  func(email string) bool { return email == adminEmail },
		Logger:   logger,
	})
	return &fixture{t: t, backend: backend, gateway: gateway, router: router}
}

func (f *fixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) register(email string) *models.AuthSession {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"full_name":        "Ada Obi",
		"email":            email,
		"password":         validPassword,
		"confirm_password": validPassword,
	})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	var session models.AuthSession
	require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &session))
	return &session
}

func (f *fixture) product(name string, price int64) *models.Product {
	f.t.Helper()
	p := &models.Product{Name: name, Price: decimal.NewFromInt(price), Category: "Clothes", Image: "http://img/" + name}
	require.NoError(f.t, f.backend.Products.Create(context.Background(), p))
	return p
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestPing(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestPingReportsDatabaseFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	PingHandler(func(context.Context) error { return errors.New("down") })(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/api/cart", "/api/orders", "/api/auth/me", "/api/admin/orders"} {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, path, "", nil).Code)
			assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, path, "garbage", nil).Code)
		})
	}
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	h := requestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, http.StatusTeapot, hook.LastEntry().Data["status"])
	assert.Equal(t, "/brew", hook.LastEntry().Data["path"])
}
