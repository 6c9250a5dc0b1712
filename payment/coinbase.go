package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	CoinbaseName       = "coinbase"
	coinbaseBaseURL    = "https://api.commerce.coinbase.com"
	coinbaseAPIVersion = "2018-03-22"

	// CoinbaseSignatureHeader carries the HMAC of a webhook body.
	CoinbaseSignatureHeader = "X-CC-Webhook-Signature"
)

type CoinbaseConfig struct {
	APIKey        string
	WebhookSecret string
	BaseURL       string
	Client        *http.Client
}

// Coinbase opens Coinbase Commerce charges for crypto payments.
type Coinbase struct {
	cfg    CoinbaseConfig
	client *http.Client
}

func NewCoinbase(cfg CoinbaseConfig) *Coinbase {
	if cfg.BaseURL == "" {
		cfg.BaseURL = coinbaseBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Coinbase{cfg: cfg, client: httpClient(cfg.Client)}
}

func (c *Coinbase) Name() string { return CoinbaseName }

type coinbaseCharge struct {
	Code      string            `json:"code"`
	HostedURL string            `json:"hosted_url"`
	Metadata  map[string]string `json:"metadata"`
	Pricing   struct {
		Local struct {
			Amount   decimal.Decimal `json:"amount"`
			Currency string          `json:"currency"`
		} `json:"local"`
	} `json:"pricing"`
	Timeline []struct {
		Status string `json:"status"`
	} `json:"timeline"`
}

func (c *Coinbase) Initialize(ctx context.Context, req Request) (*Checkout, error) {
	payload := map[string]interface{}{
		"name":         req.Branding.Title,
		"description":  req.Branding.Description,
		"pricing_type": "fixed_price",
		"local_price": map[string]string{
			"amount":   req.Amount.String(),
			"currency": req.Currency,
		},
		"metadata": map[string]string{
			"reference":      req.Reference,
			"customer_name":  req.Customer.Name,
			"customer_email": req.Customer.Email,
		},
	}
	if req.RedirectURL != "" {
		payload["redirect_url"] = withQuery(req.RedirectURL, req.Reference, StatusSuccessful)
		payload["cancel_url"] = withQuery(req.RedirectURL, req.Reference, StatusCancelled)
	}

	var charge coinbaseCharge
	if err := c.do(ctx, http.MethodPost, "/charges", payload, &charge); err != nil {
		return nil, err
	}
	if charge.HostedURL == "" {
		return nil, fmt.Errorf("coinbase returned empty hosted url")
	}
	return &Checkout{
		Gateway:     CoinbaseName,
		Reference:   req.Reference,
		ProviderRef: charge.Code,
		Link:        charge.HostedURL,
	}, nil
}

func (c *Coinbase) Verify(ctx context.Context, checkout *Checkout) (*Result, error) {
	if checkout.ProviderRef == "" {
		return nil, fmt.Errorf("coinbase checkout %s has no charge code", checkout.Reference)
	}

	var charge coinbaseCharge
	if err := c.do(ctx, http.MethodGet, "/charges/"+url.PathEscape(checkout.ProviderRef), nil, &charge); err != nil {
		return nil, err
	}

	res := &Result{
		Gateway:     CoinbaseName,
		Reference:   charge.Metadata["reference"],
		ProviderRef: charge.Code,
		Amount:      charge.Pricing.Local.Amount,
		Currency:    charge.Pricing.Local.Currency,
		Status:      StatusPending,
	}
	if res.Reference == "" {
		res.Reference = checkout.Reference
	}
	if n := len(charge.Timeline); n > 0 {
		switch charge.Timeline[n-1].Status {
		case "COMPLETED", "CONFIRMED", "RESOLVED":
			res.Status = StatusSuccessful
		case "EXPIRED", "CANCELED":
			res.Status = StatusCancelled
		case "UNRESOLVED":
			res.Status = StatusFailed
		}
	}
	return res, nil
}

// WebhookEvent is the part of a Coinbase Commerce webhook the storefront reads.
type WebhookEvent struct {
	Type      string
	ChargeID  string
	Reference string
}

// ParseWebhook checks the body's HMAC-SHA256 signature against the shared
// secret and decodes the event.
func (c *Coinbase) ParseWebhook(body []byte, signature string) (*WebhookEvent, error) {
	mac := hmac.New(sha256.New, []byte(c.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if c.cfg.WebhookSecret == "" || !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return nil, ErrBadSignature
	}

	var payload struct {
		Event struct {
			Type string         `json:"type"`
			Data coinbaseCharge `json:"data"`
		} `json:"event"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse coinbase webhook: %w", err)
	}
	return &WebhookEvent{
		Type:      payload.Event.Type,
		ChargeID:  payload.Event.Data.Code,
		Reference: payload.Event.Data.Metadata["reference"],
	}, nil
}

// Status maps a webhook event type to a checkout outcome.
func (e *WebhookEvent) Status() Status {
	switch e.Type {
	case "charge:confirmed", "charge:resolved":
		return StatusSuccessful
	case "charge:failed":
		return StatusFailed
	}
	return StatusPending
}

func (c *Coinbase) do(ctx context.Context, method, path string, payload interface{}, out *coinbaseCharge) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode coinbase request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build coinbase request: %w", err)
	}
	req.Header.Set("X-CC-Api-Key", c.cfg.APIKey)
	req.Header.Set("X-CC-Version", coinbaseAPIVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach coinbase: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read coinbase response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("coinbase API error (%d): %s", resp.StatusCode, string(raw))
	}

	var env struct {
		Data coinbaseCharge `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to parse coinbase response: %w", err)
	}
	*out = env.Data
	return nil
}

func withQuery(base, reference string, status Status) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("reference", reference)
	q.Set("status", string(status))
	u.RawQuery = q.Encode()
	return u.String()
}
