package billing_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrymomot/billsync/pkg/billing"
)

type fakeProvider struct {
	mu          sync.Mutex
	customers   int
	createDelay time.Duration
	failWith    error
	subs        map[string]*billing.SubscriptionState
	checkouts   []billing.CheckoutRequest
	portals     []billing.PortalRequest
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{subs: make(map[string]*billing.SubscriptionState)}
}

func (p *fakeProvider) CreateCustomer(_ context.Context, req billing.CustomerRequest) (string, error) {
	if p.createDelay > 0 {
		time.Sleep(p.createDelay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return "", p.failWith
	}
	p.customers++
	return fmt.Sprintf("cus_%s_%d", req.UserID, p.customers), nil
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, req billing.CheckoutRequest) (*billing.RedirectTarget, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return nil, p.failWith
	}
	p.checkouts = append(p.checkouts, req)
	id := fmt.Sprintf("cs_%d", len(p.checkouts))
	return &billing.RedirectTarget{ID: id, URL: "https://checkout.example.com/" + id}, nil
}

func (p *fakeProvider) CreatePortalSession(_ context.Context, req billing.PortalRequest) (*billing.RedirectTarget, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return nil, p.failWith
	}
	p.portals = append(p.portals, req)
	return &billing.RedirectTarget{URL: "https://portal.example.com/" + req.CustomerID}, nil
}

func (p *fakeProvider) GetSubscription(_ context.Context, id string) (*billing.SubscriptionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return nil, p.failWith
	}
	state, ok := p.subs[id]
	if !ok {
		return nil, errors.Join(billing.ErrProviderUnavailable, errors.New("no such subscription"))
	}
	c := *state
	return &c, nil
}

func (p *fakeProvider) setSubscription(state billing.SubscriptionState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs[state.ID] = &state
}

func (p *fakeProvider) customerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.customers
}

type deletingProvider struct {
	*fakeProvider
	deleted []string
}

func (p *deletingProvider) DeleteCustomer(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, id)
	return nil
}

// eventAuth accepts the payload "ok" and returns the configured event.
type eventAuth struct {
	event billing.Event
}

func (a *eventAuth) SignatureHeader() string { return "X-Test-Signature" }

func (a *eventAuth) Authenticate(_ context.Context, payload []byte, signature string) (billing.Event, error) {
	if signature != "good" {
		return nil, billing.ErrInvalidSignature
	}
	if string(payload) != "ok" {
		return nil, billing.ErrMalformedEvent
	}
	return a.event, nil
}

// racingStore binds a competing customer right before the first EnsureCustomer.
type racingStore struct {
	*billing.MemoryStore
	winner string
	once   sync.Once
}

func (s *racingStore) EnsureCustomer(ctx context.Context, userID, customerID string) (string, error) {
	s.once.Do(func() {
		_, _ = s.MemoryStore.EnsureCustomer(ctx, userID, s.winner)
	})
	return s.MemoryStore.EnsureCustomer(ctx, userID, customerID)
}

// failingStore fails every operation.
type failingStore struct{}

var errDown = errors.New("connection refused")

func (failingStore) GetByUser(context.Context, string) (*billing.Subscription, error) {
	return nil, errDown
}

func (failingStore) GetBySubscriptionID(context.Context, string) (*billing.Subscription, error) {
	return nil, errDown
}

func (failingStore) EnsureCustomer(context.Context, string, string) (string, error) {
	return "", errDown
}

func (failingStore) Upsert(context.Context, billing.Change) (*billing.Subscription, bool, error) {
	return nil, false, errDown
}
