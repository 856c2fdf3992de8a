package billing

import "time"

// Change is a guarded write of provider state onto a subscription record.
// Zero-valued fields leave the stored value untouched.
type Change struct {
	UserID           string
	CustomerID       string
	SubscriptionID   string
	Plan             PlanID
	Status           Status
	CurrentPeriodEnd *time.Time
	EventAt          time.Time

	// ReplaceSubscription allows the change to bind a different provider
	// subscription to the user. Only checkout completion sets it.
	ReplaceSubscription bool
}

// LookupField names a unique key of the subscription record.
type LookupField string

const (
	LookupSubscriptionID LookupField = "subscription_id"
	LookupUserID         LookupField = "user_id"
	LookupCustomerID     LookupField = "customer_id"
)

// Lookup is one candidate key for locating the record a change targets.
type Lookup struct {
	Field LookupField
	Value string
}

// Lookups returns the keys to try, in order, when locating the target record.
// The provider subscription id is canonical once known; the user id is used
// first only when the change is allowed to rebind the subscription.
func (c Change) Lookups() []Lookup {
	order := []Lookup{
		{LookupSubscriptionID, c.SubscriptionID},
		{LookupUserID, c.UserID},
		{LookupCustomerID, c.CustomerID},
	}
	if c.ReplaceSubscription {
		order[0], order[1] = order[1], order[0]
	}

	out := order[:0]
	for _, l := range order {
		if l.Value != "" {
			out = append(out, l)
		}
	}
	return out
}

// Merge applies c onto current and reports whether anything was written.
// A nil current means no record exists yet. The returned record is always a
// copy; current is never modified.
//
// The change is discarded when it is not newer than the last applied event.
// A tie is broken in favor of a transition into canceled, which is terminal.
func Merge(current *Subscription, c Change, now time.Time) (*Subscription, bool) {
	if current == nil {
		current = &Subscription{
			UserID:    c.UserID,
			Plan:      PlanFree,
			Status:    StatusNone,
			CreatedAt: now,
		}
	} else if !supersedes(current, c) {
		return current.Clone(), false
	}

	next := current.Clone()
	if next.CustomerID == "" {
		next.CustomerID = c.CustomerID
	}
	if c.SubscriptionID != "" {
		next.SubscriptionID = c.SubscriptionID
	}
	if c.Plan != "" {
		next.Plan = c.Plan
	}
	if c.Status != "" {
		next.Status = c.Status
	}
	if c.CurrentPeriodEnd != nil {
		t := c.CurrentPeriodEnd.UTC()
		next.CurrentPeriodEnd = &t
	}
	if c.EventAt.After(next.LastEventAt) {
		next.LastEventAt = c.EventAt.UTC()
	}
	next.UpdatedAt = now
	return next, true
}

func supersedes(current *Subscription, c Change) bool {
	if !c.ReplaceSubscription && current.SubscriptionID != "" &&
		c.SubscriptionID != "" && c.SubscriptionID != current.SubscriptionID {
		// lifecycle event of a subscription the user no longer holds
		return false
	}
	if c.EventAt.After(current.LastEventAt) {
		return true
	}
	return c.EventAt.Equal(current.LastEventAt) &&
		c.Status == StatusCanceled &&
		current.Status != StatusCanceled &&
		current.SubscriptionID == c.SubscriptionID
}
