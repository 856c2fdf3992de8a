package stripe

import (
	"context"
	"errors"
	"fmt"
	"time"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/dmitrymomot/billsync/pkg/billing"
)

// Provider implements billing.Provider and billing.CustomerDeleter on the
// Stripe API.
type Provider struct {
	createCustomer        func(params *stripelib.CustomerParams) (*stripelib.Customer, error)
	deleteCustomer        func(id string, params *stripelib.CustomerParams) (*stripelib.Customer, error)
	createCheckoutSession func(params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error)
	createPortalSession   func(params *stripelib.BillingPortalSessionParams) (*stripelib.BillingPortalSession, error)
	getSubscription       func(id string, params *stripelib.SubscriptionParams) (*stripelib.Subscription, error)
}

var (
	_ billing.Provider        = (*Provider)(nil)
	_ billing.CustomerDeleter = (*Provider)(nil)
)

// NewProvider returns a Provider using its own API client, leaving the
// package-level stripe.Key untouched.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	sc := client.New(cfg.SecretKey, nil)
	return &Provider{
		createCustomer:        sc.Customers.New,
		deleteCustomer:        sc.Customers.Del,
		createCheckoutSession: sc.CheckoutSessions.New,
		createPortalSession:   sc.BillingPortalSessions.New,
		getSubscription:       sc.Subscriptions.Get,
	}, nil
}

func (p *Provider) CreateCustomer(ctx context.Context, req billing.CustomerRequest) (string, error) {
	params := &stripelib.CustomerParams{
		Metadata: billing.Metadata{UserID: req.UserID}.Map(),
	}
	params.Context = ctx
	if req.Email != "" {
		params.Email = stripelib.String(req.Email)
	}
	if req.Name != "" {
		params.Name = stripelib.String(req.Name)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	cus, err := p.createCustomer(params)
	if err != nil {
		return "", unavailable("create customer", err)
	}
	if cus == nil || cus.ID == "" {
		return "", unavailable("create customer", errors.New("empty customer id"))
	}
	return cus.ID, nil
}

func (p *Provider) DeleteCustomer(ctx context.Context, customerID string) error {
	params := &stripelib.CustomerParams{}
	params.Context = ctx
	if _, err := p.deleteCustomer(customerID, params); err != nil {
		return unavailable("delete customer", err)
	}
	return nil
}

func (p *Provider) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.RedirectTarget, error) {
	metadata := req.Metadata.Map()
	params := &stripelib.CheckoutSessionParams{
		Mode:       stripelib.String(string(stripelib.CheckoutSessionModeSubscription)),
		Customer:   stripelib.String(req.CustomerID),
		SuccessURL: stripelib.String(req.SuccessURL),
		CancelURL:  stripelib.String(req.CancelURL),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{
			{
				Price:    stripelib.String(req.PriceID),
				Quantity: stripelib.Int64(1),
			},
		},
		SubscriptionData: &stripelib.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
		ClientReferenceID: stripelib.String(req.Metadata.UserID),
		Metadata:          metadata,
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	sess, err := p.createCheckoutSession(params)
	if err != nil {
		return nil, unavailable("create checkout session", err)
	}
	if sess == nil || sess.URL == "" {
		return nil, unavailable("create checkout session", errors.New("empty session url"))
	}
	target := &billing.RedirectTarget{ID: sess.ID, URL: sess.URL}
	if sess.ExpiresAt > 0 {
		target.ExpiresAt = time.Unix(sess.ExpiresAt, 0).UTC()
	}
	return target, nil
}

func (p *Provider) CreatePortalSession(ctx context.Context, req billing.PortalRequest) (*billing.RedirectTarget, error) {
	params := &stripelib.BillingPortalSessionParams{
		Customer:  stripelib.String(req.CustomerID),
		ReturnURL: stripelib.String(req.ReturnURL),
	}
	params.Context = ctx

	sess, err := p.createPortalSession(params)
	if err != nil {
		return nil, unavailable("create portal session", err)
	}
	if sess == nil || sess.URL == "" {
		return nil, unavailable("create portal session", errors.New("empty session url"))
	}
	return &billing.RedirectTarget{ID: sess.ID, URL: sess.URL}, nil
}

func (p *Provider) GetSubscription(ctx context.Context, subscriptionID string) (*billing.SubscriptionState, error) {
	params := &stripelib.SubscriptionParams{}
	params.Context = ctx

	sub, err := p.getSubscription(subscriptionID, params)
	if err != nil {
		return nil, unavailable("get subscription", err)
	}
	if sub == nil {
		return nil, unavailable("get subscription", errors.New("empty subscription"))
	}
	return subscriptionState(sub), nil
}

func subscriptionState(sub *stripelib.Subscription) *billing.SubscriptionState {
	state := &billing.SubscriptionState{
		ID:       sub.ID,
		Status:   billing.ParseStatus(string(sub.Status)),
		Metadata: billing.MetadataFromMap(sub.Metadata),
	}
	if sub.Customer != nil {
		state.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item == nil || item.Price == nil {
				continue
			}
			state.PriceID = item.Price.ID
			state.LookupKey = item.Price.LookupKey
			if item.CurrentPeriodEnd > 0 {
				state.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
			}
			break
		}
	}
	return state
}

func unavailable(op string, err error) error {
	return errors.Join(billing.ErrProviderUnavailable, fmt.Errorf("stripe: %s: %w", op, err))
}
