package billing

import (
	"context"
	"time"
)

// Provider is the minimal surface of the external payment provider used by billing.
// Implementations wrap every failed call with ErrProviderUnavailable.
type Provider interface {
	// CreateCustomer creates a provider customer and returns its id.
	CreateCustomer(ctx context.Context, req CustomerRequest) (string, error)

	// CreateCheckoutSession starts a hosted checkout for a single price.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*RedirectTarget, error)

	// CreatePortalSession starts a hosted self-service session for a customer.
	CreatePortalSession(ctx context.Context, req PortalRequest) (*RedirectTarget, error)

	// GetSubscription fetches the authoritative state of a provider subscription.
	GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error)
}

// CustomerDeleter is implemented by providers that can remove a customer.
// The customer resolver uses it to clean up duplicates created by a lost race.
type CustomerDeleter interface {
	DeleteCustomer(ctx context.Context, customerID string) error
}

// CustomerRequest describes a provider customer to create.
type CustomerRequest struct {
	UserID         string
	Email          string
	Name           string
	IdempotencyKey string
}

// CheckoutRequest describes a hosted checkout session.
type CheckoutRequest struct {
	CustomerID     string
	PriceID        string
	SuccessURL     string
	CancelURL      string
	Metadata       Metadata // attached to the session and to the resulting subscription
	IdempotencyKey string   // unique per checkout attempt, reused across provider retries
}

// PortalRequest describes a hosted customer portal session.
type PortalRequest struct {
	CustomerID string
	ReturnURL  string
}

// RedirectTarget is an opaque provider-hosted page the end user is sent to.
type RedirectTarget struct {
	ID        string    `json:"id,omitempty"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Metadata keys attached to provider objects for correlation.
const (
	MetadataUserID = "user_id"
	MetadataPlan   = "plan"
)

// Metadata correlates provider objects back to a local user.
// The plan value is advisory: webhook-reported prices win.
type Metadata struct {
	UserID string
	Plan   PlanID
}

// Map returns the provider representation of m. Empty values are omitted.
func (m Metadata) Map() map[string]string {
	out := make(map[string]string, 2)
	if m.UserID != "" {
		out[MetadataUserID] = m.UserID
	}
	if m.Plan != "" {
		out[MetadataPlan] = string(m.Plan)
	}
	return out
}

// MetadataFromMap reads correlation metadata from a provider map.
func MetadataFromMap(m map[string]string) Metadata {
	return Metadata{
		UserID: m[MetadataUserID],
		Plan:   PlanID(m[MetadataPlan]),
	}
}

// SubscriptionState is the provider's view of a subscription, normalized.
type SubscriptionState struct {
	ID               string
	CustomerID       string
	Status           Status
	PriceID          string
	LookupKey        string
	CurrentPeriodEnd time.Time
	Metadata         Metadata
}
