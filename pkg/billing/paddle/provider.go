package paddle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	paddlesdk "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/dmitrymomot/billsync/pkg/billing"
)

// Provider implements billing.Provider on Paddle Billing. Paddle customers
// cannot be deleted, so orphans left by a lost race are only logged.
type Provider struct {
	checkoutURL string

	createCustomer      func(ctx context.Context, req *paddlesdk.CreateCustomerRequest) (*paddlesdk.Customer, error)
	createTransaction   func(ctx context.Context, req *paddlesdk.CreateTransactionRequest) (*paddlesdk.Transaction, error)
	createPortalSession func(ctx context.Context, req *paddlesdk.CreateCustomerPortalSessionRequest) (*paddlesdk.CustomerPortalSession, error)
	getSubscription     func(ctx context.Context, req *paddlesdk.GetSubscriptionRequest) (*paddlesdk.Subscription, error)
}

var _ billing.Provider = (*Provider)(nil)

func NewProvider(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("paddle: API key is required")
	}

	var (
		sdk *paddlesdk.SDK
		err error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		sdk, err = paddlesdk.NewSandbox(cfg.APIKey)
	case "production", "":
		sdk, err = paddlesdk.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("paddle: invalid environment %q", cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("paddle: create client: %w", err)
	}

	return &Provider{
		checkoutURL:         cfg.CheckoutURL,
		createCustomer:      sdk.CustomersClient.CreateCustomer,
		createTransaction:   sdk.TransactionsClient.CreateTransaction,
		createPortalSession: sdk.CustomerPortalSessionsClient.CreateCustomerPortalSession,
		getSubscription:     sdk.SubscriptionsClient.GetSubscription,
	}, nil
}

// CreateCustomer requires an email; Paddle rejects customers without one.
func (p *Provider) CreateCustomer(ctx context.Context, req billing.CustomerRequest) (string, error) {
	if req.Email == "" {
		return "", errors.Join(billing.ErrCustomerDetailsRequired, errors.New("paddle: create customer: email is required"))
	}
	creq := &paddlesdk.CreateCustomerRequest{
		Email:      req.Email,
		CustomData: customData(billing.Metadata{UserID: req.UserID}),
	}
	if req.Name != "" {
		creq.Name = paddlesdk.PtrTo(req.Name)
	}

	cus, err := p.createCustomer(ctx, creq)
	if err != nil {
		return "", unavailable("create customer", err)
	}
	if cus == nil || cus.ID == "" {
		return "", unavailable("create customer", errors.New("empty customer id"))
	}
	return cus.ID, nil
}

// CreateCheckoutSession opens a draft transaction whose checkout URL is the
// hosted payment page. Custom data is copied onto the resulting subscription.
func (p *Provider) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.RedirectTarget, error) {
	item := paddlesdk.NewCreateTransactionItemsTransactionItemFromCatalog(&paddlesdk.TransactionItemFromCatalog{
		PriceID:  req.PriceID,
		Quantity: 1,
	})
	treq := &paddlesdk.CreateTransactionRequest{
		Items:      []paddlesdk.CreateTransactionItems{*item},
		CustomerID: paddlesdk.PtrTo(req.CustomerID),
		CustomData: customData(req.Metadata),
	}
	if p.checkoutURL != "" {
		treq.Checkout = &paddlesdk.TransactionCheckout{URL: paddlesdk.PtrTo(p.checkoutURL)}
	}

	txn, err := p.createTransaction(ctx, treq)
	if err != nil {
		return nil, unavailable("create transaction", err)
	}
	if txn == nil || txn.Checkout == nil || txn.Checkout.URL == nil || *txn.Checkout.URL == "" {
		return nil, unavailable("create transaction", errors.New("no checkout url returned"))
	}
	return &billing.RedirectTarget{ID: txn.ID, URL: *txn.Checkout.URL}, nil
}

func (p *Provider) CreatePortalSession(ctx context.Context, req billing.PortalRequest) (*billing.RedirectTarget, error) {
	sess, err := p.createPortalSession(ctx, &paddlesdk.CreateCustomerPortalSessionRequest{
		CustomerID: req.CustomerID,
	})
	if err != nil {
		return nil, unavailable("create portal session", err)
	}
	if sess == nil || sess.URLs.General.Overview == "" {
		return nil, unavailable("create portal session", errors.New("no portal url returned"))
	}
	return &billing.RedirectTarget{ID: sess.ID, URL: sess.URLs.General.Overview}, nil
}

func (p *Provider) GetSubscription(ctx context.Context, subscriptionID string) (*billing.SubscriptionState, error) {
	sub, err := p.getSubscription(ctx, &paddlesdk.GetSubscriptionRequest{SubscriptionID: subscriptionID})
	if err != nil {
		return nil, unavailable("get subscription", err)
	}
	if sub == nil {
		return nil, unavailable("get subscription", errors.New("empty subscription"))
	}

	state := &billing.SubscriptionState{
		ID:         sub.ID,
		CustomerID: sub.CustomerID,
		Status:     billing.ParseStatus(string(sub.Status)),
		Metadata:   metadataFromCustomData(sub.CustomData),
	}
	if len(sub.Items) > 0 {
		state.PriceID = sub.Items[0].Price.ID
	}
	if sub.CurrentBillingPeriod != nil {
		state.CurrentPeriodEnd = parseTime(sub.CurrentBillingPeriod.EndsAt)
	}
	return state, nil
}

func customData(md billing.Metadata) paddlesdk.CustomData {
	out := paddlesdk.CustomData{}
	for k, v := range md.Map() {
		out[k] = v
	}
	return out
}

func metadataFromCustomData(cd map[string]any) billing.Metadata {
	m := make(map[string]string, len(cd))
	for k, v := range cd {
		if s, ok := v.(string); ok {
			m[k] = s
		}
	}
	return billing.MetadataFromMap(m)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func unavailable(op string, err error) error {
	return errors.Join(billing.ErrProviderUnavailable, fmt.Errorf("paddle: %s: %w", op, err))
}
