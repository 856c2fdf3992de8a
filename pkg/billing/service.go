package billing

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// Service is the billing synchronization facade used by the HTTP layer and by
// feature-gating collaborators.
type Service interface {
	// Redirect flows
	StartCheckout(ctx context.Context, user User, plan PlanID, successURL, cancelURL string) (*RedirectTarget, error)
	OpenPortal(ctx context.Context, user User, returnURL string) (*RedirectTarget, error)
	ResolveCustomer(ctx context.Context, user User) (string, error)

	// Webhook path
	HandleWebhook(ctx context.Context, payload []byte, signature string) (Outcome, error)
	Dispatch(ctx context.Context, event Event) (Outcome, error)
	SignatureHeader() string

	// Read model
	GetByUser(ctx context.Context, userID string) (*Subscription, error)
	Catalog() *Catalog
}

type service struct {
	catalog  *Catalog
	provider Provider
	auth     Authenticator
	store    Store
	locker   Locker
	log      *slog.Logger

	customers singleflight.Group
}

// NewService wires the billing service. Panics on nil required dependencies
// so misconfiguration fails at startup.
func NewService(catalog *Catalog, provider Provider, auth Authenticator, store Store, opts ...ServiceOption) Service {
	if catalog == nil {
		panic("billing: Catalog is required")
	}
	if provider == nil {
		panic("billing: Provider is required")
	}
	if auth == nil {
		panic("billing: Authenticator is required")
	}
	if store == nil {
		panic("billing: Store is required")
	}

	s := &service{
		catalog:  catalog,
		provider: provider,
		auth:     auth,
		store:    store,
		locker:   NewMemoryLocker(),
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Catalog() *Catalog {
	return s.catalog
}

func (s *service) SignatureHeader() string {
	return s.auth.SignatureHeader()
}

// GetByUser returns the user's subscription, or the implicit free view.
func (s *service) GetByUser(ctx context.Context, userID string) (*Subscription, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	return s.store.GetByUser(ctx, userID)
}

// HandleWebhook authenticates a raw delivery and dispatches it.
// Nothing is decoded or stored before the signature is verified.
func (s *service) HandleWebhook(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	event, err := s.auth.Authenticate(ctx, payload, signature)
	if err != nil {
		return "", err
	}
	return s.Dispatch(ctx, event)
}
