package payment

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"storefront/models"
)

// Callbacks are fired once per checkout when it completes.
type Callbacks struct {
	OnSuccess func(ctx context.Context, res *Result) error
	OnClose   func(ctx context.Context)
}

type pendingCheckout struct {
	gateway   Gateway
	checkout  *Checkout
	request   Request
	callbacks Callbacks
	settling  bool
}

// Adapter tracks open checkouts across the gateways it knows. A checkout stays
// open until the provider reports a final outcome for it.
type Adapter struct {
	gateways map[string]Gateway
	logger   logrus.FieldLogger
	now      func() time.Time
	suffix   func() string

	mu      sync.Mutex
	pending map[string]*pendingCheckout
}

func NewAdapter(logger logrus.FieldLogger, gateways ...Gateway) *Adapter {
	a := &Adapter{
		gateways: make(map[string]Gateway, len(gateways)),
		logger:   logger.WithField("component", "payment"),
		now:      time.Now,
		suffix:   uuid.NewString,
		pending:  make(map[string]*pendingCheckout),
	}
	for _, g := range gateways {
		a.gateways[g.Name()] = g
	}
	return a
}

func (a *Adapter) Gateway(name string) (Gateway, bool) {
	g, ok := a.gateways[name]
	return g, ok
}

// Open starts a hosted checkout. The reference sent to the provider is the
// caller's reference, or the current time in milliseconds when blank, made
// unique with a random suffix. Blank contact fields come from identity.
func (a *Adapter) Open(ctx context.Context, gatewayName string, req Request, identity *models.User, cb Callbacks) (*Checkout, error) {
	gateway, ok := a.gateways[gatewayName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGateway, gatewayName)
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.Reference == "" {
		req.Reference = strconv.FormatInt(a.now().UnixMilli(), 10)
	}
	req.Reference += "-" + a.suffix()
	if req.Currency == "" {
		req.Currency = DefaultCurrency
	}
	if req.Branding == (Branding{}) {
		req.Branding = Branding{Title: DefaultTitle, Description: DefaultDescription, Logo: DefaultLogo}
	}
	req.Customer = req.Customer.WithFallback(identity)

	// Claim the reference before calling the provider.
	p := &pendingCheckout{gateway: gateway, request: req, callbacks: cb}
	a.mu.Lock()
	if _, taken := a.pending[req.Reference]; taken {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateReference, req.Reference)
	}
	a.pending[req.Reference] = p
	a.mu.Unlock()

	checkout, err := gateway.Initialize(ctx, req)

	a.mu.Lock()
	if err != nil {
		delete(a.pending, req.Reference)
	} else {
		p.checkout = checkout
	}
	a.mu.Unlock()

	if err != nil {
		a.logger.WithError(err).WithField("gateway", gatewayName).Error("Error opening checkout")
		return nil, err
	}
	a.logger.WithFields(logrus.Fields{
		"gateway":   gatewayName,
		"reference": req.Reference,
	}).Info("Checkout opened")
	return checkout, nil
}

// Pending reports whether a checkout is still open for reference.
func (a *Adapter) Pending(reference string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pending[reference]
	return ok && p.checkout != nil
}

// claim marks the checkout for reference as being settled by the caller.
func (a *Adapter) claim(reference string) (*pendingCheckout, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pending[reference]
	if !ok || p.checkout == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCheckout, reference)
	}
	if p.settling {
		return nil, fmt.Errorf("%w: %s", ErrCheckoutSettling, reference)
	}
	p.settling = true
	return p, nil
}

// settle releases the claim. A final outcome also closes the checkout.
func (a *Adapter) settle(reference string, final bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if final {
		delete(a.pending, reference)
		return
	}
	if p, ok := a.pending[reference]; ok {
		p.settling = false
	}
}

// Complete settles the checkout for reference. A reported cancellation fires
// OnClose without asking the provider. Anything else is verified with the
// provider: OnSuccess fires only when the provider confirms the full amount
// was paid, and a cancelled or failed payment fires OnClose. A pending
// payment or a verification error leaves the checkout open for a later call.
func (a *Adapter) Complete(ctx context.Context, reference string, reported Status) (*Result, error) {
	p, err := a.claim(reference)
	if err != nil {
		return nil, err
	}
	final := false
	defer func() { a.settle(reference, final) }()

	log := a.logger.WithFields(logrus.Fields{
		"gateway":   p.gateway.Name(),
		"reference": reference,
	})

	if reported == StatusCancelled {
		final = true
		if p.callbacks.OnClose != nil {
			p.callbacks.OnClose(ctx)
		}
		log.Info("Checkout closed")
		return &Result{Gateway: p.gateway.Name(), Reference: reference, Status: StatusCancelled}, nil
	}

	res, err := p.gateway.Verify(ctx, p.checkout)
	if err != nil {
		log.WithError(err).Error("Error verifying payment")
		return nil, err
	}
	if res.Status == StatusSuccessful && !settles(res, p.request) {
		log.WithFields(logrus.Fields{
			"paid":     res.Amount.String(),
			"expected": p.request.Amount.String(),
		}).Warn("Payment does not cover the checkout amount")
		res.Status = StatusFailed
	}

	switch res.Status {
	case StatusPending:
		log.Info("Payment still pending")
	case StatusSuccessful:
		final = true
		log.Info("Payment successful")
		if p.callbacks.OnSuccess != nil {
			if err := p.callbacks.OnSuccess(ctx, res); err != nil {
				return res, err
			}
		}
	default:
		final = true
		log.WithField("status", res.Status).Warn("Payment not successful")
		if p.callbacks.OnClose != nil {
			p.callbacks.OnClose(ctx)
		}
	}
	return res, nil
}

func settles(res *Result, req Request) bool {
	if res.Currency != "" && res.Currency != req.Currency {
		return false
	}
	return res.Amount.GreaterThanOrEqual(req.Amount)
}
