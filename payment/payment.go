// Package payment drives hosted checkouts on external payment providers.
package payment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"storefront/models"
)

const (
	DefaultCurrency       = "NGN"
	DefaultTitle          = "Ulisha Store"
	DefaultDescription    = "Payment for items in cart"
	DefaultLogo           = "https://st2.depositphotos.com/4403291/7418/v/450/depositphotos_74189661-stock-illustration-online-shop-log.jpg"
	defaultRequestTimeout = 15 * time.Second
)

var (
	ErrUnknownGateway     = errors.New("unknown payment gateway")
	ErrUnknownCheckout    = errors.New("no open checkout for reference")
	ErrCheckoutSettling   = errors.New("checkout is already being settled")
	ErrDuplicateReference = errors.New("a checkout is already open for reference")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrBadSignature       = errors.New("invalid webhook signature")
)

type Status string

const (
	StatusSuccessful Status = "successful"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
	StatusPending    Status = "pending"
)

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// WithFallback fills blank contact fields from the signed-in user.
func (c Customer) WithFallback(u *models.User) Customer {
	if u == nil {
		return c
	}
	if c.Email == "" {
		c.Email = u.Email
	}
	if c.Name == "" {
		c.Name = u.FullName
	}
	return c
}

type Branding struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Logo        string `json:"logo"`
}

type Request struct {
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Customer    Customer        `json:"customer"`
	Branding    Branding        `json:"branding"`
	RedirectURL string          `json:"redirect_url"`
}

// Checkout is an opened hosted payment page.
type Checkout struct {
	Gateway     string `json:"gateway"`
	Reference   string `json:"reference"`
	ProviderRef string `json:"provider_ref,omitempty"`
	Link        string `json:"link"`
}

type Result struct {
	Gateway     string          `json:"gateway"`
	Reference   string          `json:"reference"`
	ProviderRef string          `json:"provider_ref,omitempty"`
	Status      Status          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

// Gateway is one payment provider.
type Gateway interface {
	Name() string
	Initialize(ctx context.Context, req Request) (*Checkout, error)
	// Verify asks the provider for the state of a checkout it opened.
	Verify(ctx context.Context, checkout *Checkout) (*Result, error)
}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultRequestTimeout}
}
