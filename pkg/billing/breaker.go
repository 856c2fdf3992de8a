package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/dmitrymomot/billsync/pkg/logger"
)

// BreakerConfig configures the circuit breaker around provider calls.
type BreakerConfig struct {
	Failures    uint32        `env:"BILLING_BREAKER_FAILURES" envDefault:"5"`   // consecutive failures that open the circuit
	Timeout     time.Duration `env:"BILLING_BREAKER_TIMEOUT" envDefault:"30s"`  // open state duration before probing
	Interval    time.Duration `env:"BILLING_BREAKER_INTERVAL" envDefault:"60s"` // closed state counter reset period
	MaxRequests uint32        `env:"BILLING_BREAKER_HALF_OPEN" envDefault:"1"`  // probes allowed while half-open
}

// BreakerProvider guards a Provider with a circuit breaker so an unhealthy
// provider fails fast with ErrProviderUnavailable instead of piling up
// requests until their deadlines.
type BreakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreakerProvider wraps next. State changes are logged through log.
func NewBreakerProvider(next Provider, cfg BreakerConfig, log *slog.Logger) *BreakerProvider {
	if next == nil {
		panic("billing: Provider is required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	failures := cfg.Failures
	if failures == 0 {
		failures = 5
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "billing-provider",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// caller cancellations say nothing about provider health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Provider circuit breaker state changed",
				logger.Component(name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &BreakerProvider{next: next, cb: cb}
}

func (p *BreakerProvider) CreateCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	v, err := p.execute(func() (any, error) { return p.next.CreateCustomer(ctx, req) })
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (p *BreakerProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*RedirectTarget, error) {
	v, err := p.execute(func() (any, error) { return p.next.CreateCheckoutSession(ctx, req) })
	if err != nil {
		return nil, err
	}
	return v.(*RedirectTarget), nil
}

func (p *BreakerProvider) CreatePortalSession(ctx context.Context, req PortalRequest) (*RedirectTarget, error) {
	v, err := p.execute(func() (any, error) { return p.next.CreatePortalSession(ctx, req) })
	if err != nil {
		return nil, err
	}
	return v.(*RedirectTarget), nil
}

func (p *BreakerProvider) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error) {
	v, err := p.execute(func() (any, error) { return p.next.GetSubscription(ctx, subscriptionID) })
	if err != nil {
		return nil, err
	}
	return v.(*SubscriptionState), nil
}

// DeleteCustomer forwards to the wrapped provider when it supports deletion.
func (p *BreakerProvider) DeleteCustomer(ctx context.Context, customerID string) error {
	deleter, ok := p.next.(CustomerDeleter)
	if !ok {
		return ErrCustomerDeletionUnsupported
	}
	_, err := p.execute(func() (any, error) { return nil, deleter.DeleteCustomer(ctx, customerID) })
	return err
}

// State reports the breaker state, e.g. for readiness probes.
func (p *BreakerProvider) State() gobreaker.State {
	return p.cb.State()
}

func (p *BreakerProvider) execute(fn func() (any, error)) (any, error) {
	v, err := p.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Join(ErrProviderUnavailable, err)
	}
	return v, err
}
