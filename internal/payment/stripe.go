// Package payment implements checkout.Provider on top of Stripe Checkout.
package payment

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/checkout"
)

// Config holds Stripe Checkout settings.
type Config struct {
	SecretKey string
	// APIURL overrides the Stripe API base URL. Empty means the default.
	APIURL         string
	Currency       string
	PaymentMethods []string
	// SuccessURL may contain the {CHECKOUT_SESSION_ID} placeholder.
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
	Breaker    BreakerConfig
}

// BreakerConfig controls the circuit breaker around Stripe calls.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the
	// breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

// StripeProvider creates and reads Stripe Checkout sessions.
type StripeProvider struct {
	api     *client.API
	cfg     Config
	breaker *gobreaker.CircuitBreaker[*stripe.CheckoutSession]
}

var _ checkout.Provider = (*StripeProvider)(nil)

// NewStripeProvider creates a provider from cfg.
func NewStripeProvider(cfg Config, lg *zap.Logger) (*StripeProvider, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if cfg.Currency == "" {
		cfg.Currency = "pln"
	}
	if len(cfg.PaymentMethods) == 0 {
		cfg.PaymentMethods = []string{"card"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Breaker.MaxFailures == 0 {
		cfg.Breaker.MaxFailures = 5
	}
	if cfg.Breaker.OpenTimeout <= 0 {
		cfg.Breaker.OpenTimeout = 30 * time.Second
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	}

	breaker := gobreaker.NewCircuitBreaker[*stripe.CheckoutSession](gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: 1,
		Timeout:     cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &StripeProvider{
		api:     client.New(cfg.SecretKey, backends),
		cfg:     cfg,
		breaker: breaker,
	}, nil
}

// CreateSession creates a one-off percent-off coupon when a discount is
// requested, then a payment-mode Checkout session using it.
func (p *StripeProvider) CreateSession(ctx context.Context, req checkout.SessionRequest) (*checkout.Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice(p.cfg.PaymentMethods),
		SuccessURL:         stripe.String(p.cfg.SuccessURL),
		CancelURL:          stripe.String(p.cfg.CancelURL),
	}
	params.Context = ctx
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	for _, l := range req.Lines {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(l.Name),
		}
		if l.Image != "" {
			product.Images = stripe.StringSlice([]string{l.Image})
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(p.cfg.Currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(l.UnitAmount),
			},
			Quantity: stripe.Int64(int64(l.Quantity)),
		})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := p.breaker.Execute(func() (*stripe.CheckoutSession, error) {
		if req.DiscountPercent.IsPositive() {
			pct, _ := req.DiscountPercent.Float64()
			cp := &stripe.CouponParams{
				PercentOff: stripe.Float64(pct),
				Duration:   stripe.String(string(stripe.CouponDurationOnce)),
			}
			cp.Context = ctx
			c, err := p.api.Coupons.New(cp)
			if err != nil {
				return nil, errors.Wrap(err, "create coupon")
			}
			params.Discounts = []*stripe.CheckoutSessionDiscountParams{
				{Coupon: stripe.String(c.ID)},
			}
		}
		return p.api.CheckoutSessions.New(params)
	})
	if err != nil {
		return nil, mapError(err, "create checkout session")
	}

	zctx.From(ctx).Debug("Stripe session created", zap.String("session_id", sess.ID))
	return toSession(sess), nil
}

// GetSession retrieves a Checkout session by ID.
func (p *StripeProvider) GetSession(ctx context.Context, id string) (*checkout.Session, error) {
	sess, err := p.breaker.Execute(func() (*stripe.CheckoutSession, error) {
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		return p.api.CheckoutSessions.Get(id, params)
	})
	if err != nil {
		return nil, mapError(err, "get checkout session")
	}
	return toSession(sess), nil
}

// Ping fails while the circuit breaker is open. It makes no API call.
func (p *StripeProvider) Ping(context.Context) error {
	if st := p.breaker.State(); st == gobreaker.StateOpen {
		return errors.Errorf("circuit breaker %s", st)
	}
	return nil
}

func toSession(s *stripe.CheckoutSession) *checkout.Session {
	return &checkout.Session{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: checkout.PaymentStatus(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Metadata:      s.Metadata,
	}
}
