package billing

import (
	"context"
	"time"
)

// EventKind is the normalized kind of a provider notification.
type EventKind string

const (
	EventCheckoutCompleted   EventKind = "checkout_completed"
	EventSubscriptionUpdated EventKind = "subscription_updated"
	EventSubscriptionDeleted EventKind = "subscription_deleted"
	EventUnhandled           EventKind = "unhandled"
)

// Event is an authenticated provider notification. The set of variants is closed:
// CheckoutCompleted, SubscriptionUpdated, SubscriptionDeleted and Unhandled.
type Event interface {
	Header() EventHeader
	event()
}

// EventHeader carries the fields common to every event.
type EventHeader struct {
	ID           string
	Kind         EventKind
	ProviderType string    // provider event name, e.g. customer.subscription.updated
	OccurredAt   time.Time // provider event time, drives the staleness guard
}

func (h EventHeader) Header() EventHeader { return h }
func (EventHeader) event()                {}

// CheckoutCompleted reports a finished hosted checkout.
type CheckoutCompleted struct {
	EventHeader
	SessionID      string
	CustomerID     string
	SubscriptionID string // empty for one-off payments
	Metadata       Metadata
}

// SubscriptionUpdated reports any change of a provider subscription.
type SubscriptionUpdated struct {
	EventHeader
	Subscription SubscriptionState
}

// SubscriptionDeleted reports the end of a provider subscription.
type SubscriptionDeleted struct {
	EventHeader
	Subscription SubscriptionState
}

// Unhandled is any authentic event billing does not act on.
type Unhandled struct {
	EventHeader
}

// Authenticator verifies raw webhook deliveries and decodes them into events.
// The payload must be the exact bytes received on the wire.
type Authenticator interface {
	// SignatureHeader is the HTTP header carrying the provider signature.
	SignatureHeader() string

	// Authenticate returns ErrInvalidSignature for any verification failure and
	// ErrMalformedEvent for authentic payloads that cannot be decoded.
	Authenticate(ctx context.Context, payload []byte, signature string) (Event, error)
}
