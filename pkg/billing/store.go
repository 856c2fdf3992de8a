package billing

import (
	"context"
	"errors"
)

// Store persists subscription records. It is the only shared mutable state
// of the billing subsystem.
type Store interface {
	// GetByUser returns the user's record, or FreeSubscription when none exists.
	GetByUser(ctx context.Context, userID string) (*Subscription, error)

	// GetBySubscriptionID returns ErrSubscriptionNotFound when no record is bound
	// to the provider subscription.
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*Subscription, error)

	// EnsureCustomer binds customerID to the user unless another id is already
	// bound, creating the record when needed. It returns the bound id.
	EnsureCustomer(ctx context.Context, userID, customerID string) (string, error)

	// Upsert locates the record targeted by c (see Change.Lookups), applies
	// Merge and persists the result in one atomic step. It reports whether the
	// change was applied. ErrSubscriptionNotAttributable is returned when no
	// record matches and c has no user id.
	Upsert(ctx context.Context, c Change) (*Subscription, bool, error)
}

// UpsertByUser applies c to the user's record, binding c.SubscriptionID to it.
func UpsertByUser(ctx context.Context, s Store, c Change) (*Subscription, bool, error) {
	if c.UserID == "" {
		return nil, false, ErrMissingUserID
	}
	c.ReplaceSubscription = true
	return s.Upsert(ctx, c)
}

// UpsertBySubscriptionID applies c to the record bound to c.SubscriptionID,
// falling back to the user or customer id carried by c.
func UpsertBySubscriptionID(ctx context.Context, s Store, c Change) (*Subscription, bool, error) {
	if c.SubscriptionID == "" {
		return nil, false, errors.Join(ErrSubscriptionNotAttributable, errors.New("subscription id is required"))
	}
	c.ReplaceSubscription = false
	return s.Upsert(ctx, c)
}
