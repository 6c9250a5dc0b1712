package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	FlutterwaveName           = "flutterwave"
	flutterwaveBaseURL        = "https://api.flutterwave.com"
	flutterwavePaymentOptions = "card,mobilemoney,ussd"
)

type FlutterwaveConfig struct {
	PublicKey string
	SecretKey string
	BaseURL   string
	Client    *http.Client
}

// Flutterwave opens Flutterwave Standard checkouts for card, mobile money and
// USSD payments.
type Flutterwave struct {
	cfg    FlutterwaveConfig
	client *http.Client
}

func NewFlutterwave(cfg FlutterwaveConfig) *Flutterwave {
	if cfg.BaseURL == "" {
		cfg.BaseURL = flutterwaveBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Flutterwave{cfg: cfg, client: httpClient(cfg.Client)}
}

func (f *Flutterwave) Name() string { return FlutterwaveName }

type flutterwaveEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *Flutterwave) Initialize(ctx context.Context, req Request) (*Checkout, error) {
	payload := map[string]interface{}{
		"tx_ref":          req.Reference,
		"amount":          req.Amount.String(),
		"currency":        req.Currency,
		"redirect_url":    req.RedirectURL,
		"payment_options": flutterwavePaymentOptions,
		"customer": map[string]string{
			"email":       req.Customer.Email,
			"phonenumber": req.Customer.Phone,
			"name":        req.Customer.Name,
		},
		"customizations": map[string]string{
			"title":       req.Branding.Title,
			"description": req.Branding.Description,
			"logo":        req.Branding.Logo,
		},
		"meta": map[string]string{
			"public_key": f.cfg.PublicKey,
		},
	}

	var data struct {
		Link string `json:"link"`
	}
	if err := f.do(ctx, http.MethodPost, "/v3/payments", payload, &data); err != nil {
		return nil, err
	}
	if data.Link == "" {
		return nil, fmt.Errorf("flutterwave returned empty payment link")
	}
	return &Checkout{Gateway: FlutterwaveName, Reference: req.Reference, Link: data.Link}, nil
}

func (f *Flutterwave) Verify(ctx context.Context, checkout *Checkout) (*Result, error) {
	path := "/v3/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(checkout.Reference)

	var data struct {
		ID       int64           `json:"id"`
		TxRef    string          `json:"tx_ref"`
		FlwRef   string          `json:"flw_ref"`
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
		Status   string          `json:"status"`
	}
	if err := f.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}

	res := &Result{
		Gateway:     FlutterwaveName,
		Reference:   data.TxRef,
		ProviderRef: data.FlwRef,
		Amount:      data.Amount,
		Currency:    data.Currency,
		Status:      StatusFailed,
	}
	switch strings.ToLower(data.Status) {
	case "successful":
		res.Status = StatusSuccessful
	case "pending":
		res.Status = StatusPending
	}
	return res, nil
}

func (f *Flutterwave) do(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode flutterwave request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, f.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build flutterwave request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach flutterwave: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read flutterwave response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("flutterwave API error (%d): %s", resp.StatusCode, string(raw))
	}

	var env flutterwaveEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to parse flutterwave response: %w", err)
	}
	if env.Status != "success" {
		return fmt.Errorf("flutterwave error: %s", env.Message)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to parse flutterwave data: %w", err)
	}
	return nil
}
