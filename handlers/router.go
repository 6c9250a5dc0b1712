// Package handlers exposes the storefront over HTTP.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"storefront/admin"
	"storefront/auth"
	"storefront/cart"
	"storefront/models"
	"storefront/payment"
	"storefront/store"
)

// AuthProvider is the identity service plus the operations only the local
// provider offers.
type AuthProvider interface {
	auth.Provider
	TokenParser
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

// WebhookParser authenticates a provider's server-to-server notification.
type WebhookParser interface {
	ParseWebhook(body []byte, signature string) (*payment.WebhookEvent, error)
}

type Deps struct {
	Backend *store.Backend
	// Products serves catalog reads; it may be a cache in front of Backend.Products.
	Products store.ProductRepository
	Auth     AuthProvider
	Payments *payment.Adapter
	Coinbase WebhookParser
	Admin    *admin.Service
	Feed     http.Handler
	Storage  http.Handler

	BaseURL     string
	Currency    string
	CORSOrigins []string
	IsAdmin     func(email string) bool
	Ping        func(ctx context.Context) error
	Logger      logrus.FieldLogger
}

func (d *Deps) authHolder(r *http.Request) *auth.Holder {
	h := auth.NewHolder(d.Auth, d.Backend.Sessions, d.Logger)
	h.Restore(sessionFrom(r))
	return h
}

func (d *Deps) cartHolder(identity cart.Identity) *cart.Holder {
	return cart.NewHolder(identity, d.Backend.Sessions, d.Backend.CartItems, d.Backend.Orders, d.Logger)
}

// requestLogger logs one line per request through logrus.
func requestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Info("request")
		})
	}
}

func NewRouter(d *Deps) http.Handler {
	if d.Products == nil {
		d.Products = d.Backend.Products
	}
	if d.Currency == "" {
		d.Currency = payment.DefaultCurrency
	}
	if d.IsAdmin == nil {
		d.IsAdmin = func(string) bool { return false }
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger.WithField("component", "http")))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((12 * time.Hour).Seconds()),
	}))

	r.Get("/ping", PingHandler(d.Ping))
	if d.Storage != nil {
		r.Mount("/storage", d.Storage)
	}

	authed := Authenticate(d.Auth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", RegisterHandler(d))
			r.Post("/login", LoginHandler(d))
			r.Post("/refresh", RefreshHandler(d))
			r.With(authed).Post("/logout", LogoutHandler(d))
			r.With(authed).Get("/me", MeHandler(d))
			r.With(authed).Post("/password", ChangePasswordHandler(d))
		})

		r.Get("/products", ProductsHandler(d))
		r.Get("/products/{id}", ProductHandler(d))

		r.Group(func(r chi.Router) {
			r.Use(authed)

			r.Get("/cart", CartHandler(d))
			r.Delete("/cart", ClearCartHandler(d))
			r.Post("/cart/items", AddItemHandler(d))
			r.Patch("/cart/items/{productID}", UpdateItemHandler(d))
			r.Delete("/cart/items/{productID}", RemoveItemHandler(d))
			r.Post("/cart/items/{productID}/save", SaveItemHandler(d))
			r.Post("/cart/items/{productID}/move", MoveItemHandler(d))

			r.Post("/checkout/{provider}", CheckoutHandler(d))
			r.Get("/orders", ListOrdersHandler(d))
		})

		r.Get("/payments/{provider}/callback", PaymentCallbackHandler(d))
		r.Post("/payments/coinbase/webhook", CoinbaseWebhookHandler(d))

		r.Route("/admin", func(r chi.Router) {
			r.Use(authed, RequireAdmin(d.IsAdmin))

			r.Get("/stats", AdminStatsHandler(d))
			r.Get("/products", AdminProductsHandler(d))
			r.Post("/products", AdminCreateProductHandler(d))
			r.Delete("/products/{id}", AdminDeleteProductHandler(d))
			r.Get("/orders", AdminOrdersHandler(d))
			r.Patch("/orders/{id}/status", AdminOrderStatusHandler(d))
			r.Get("/orders/export", AdminExportOrdersHandler(d))
			if d.Feed != nil {
				r.Get("/orders/feed", d.Feed.ServeHTTP)
			}
		})
	})

	return r
}

func PingHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				http.Error(w, "db error", http.StatusInternalServerError)
				return
			}
		}
		w.Write([]byte("pong"))
	}
}

// currentUser is the authenticated caller. Only valid behind Authenticate.
func currentUser(r *http.Request) *models.User {
	if s := sessionFrom(r); s != nil {
		return &s.User
	}
	return nil
}
