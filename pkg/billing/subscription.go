package billing

import "time"

// Status is the locally mirrored state of a provider subscription.
type Status string

const (
	// StatusNone is the implicit state of a user without a paid subscription.
	StatusNone       Status = "none"
	StatusIncomplete Status = "incomplete"
	StatusActive     Status = "active"
	StatusPastDue    Status = "past_due"
	StatusCanceled   Status = "canceled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNone, StatusIncomplete, StatusActive, StatusPastDue, StatusCanceled:
		return true
	}
	return false
}

// ParseStatus normalizes a provider status onto the local status set.
// Unknown values map to StatusIncomplete so they never grant access.
func ParseStatus(raw string) Status {
	switch raw {
	case "active", "trialing":
		return StatusActive
	case "past_due", "unpaid", "paused":
		return StatusPastDue
	case "canceled", "cancelled", "incomplete_expired":
		return StatusCanceled
	default:
		return StatusIncomplete
	}
}

// User is the identity handed over by the auth layer. Billing never mutates it.
type User struct {
	ID    string
	Email string
	Name  string
}

// Subscription is the local read model of a user's provider subscription.
// There is at most one record per user.
type Subscription struct {
	UserID           string
	Plan             PlanID
	Status           Status
	CustomerID       string     // provider customer id, write-once
	SubscriptionID   string     // provider subscription id, empty until checkout completes
	CurrentPeriodEnd *time.Time // informational, status gates access
	LastEventAt      time.Time  // provider time of the last applied event
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FreeSubscription returns the implicit view of a user without a record.
func FreeSubscription(userID string) *Subscription {
	return &Subscription{
		UserID: userID,
		Plan:   PlanFree,
		Status: StatusNone,
	}
}

func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

func (s *Subscription) IsCanceled() bool {
	return s.Status == StatusCanceled
}

// HasCustomer reports whether a provider customer was already bound to the user.
func (s *Subscription) HasCustomer() bool {
	return s.CustomerID != ""
}

// EffectivePlan returns the plan the user is entitled to right now.
// Past-due subscriptions keep their plan while the provider retries the charge.
func (s *Subscription) EffectivePlan() PlanID {
	if s.Plan == "" {
		return PlanFree
	}
	switch s.Status {
	case StatusActive, StatusPastDue:
		return s.Plan
	default:
		return PlanFree
	}
}

// Clone returns a deep copy of s.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	if s.CurrentPeriodEnd != nil {
		t := *s.CurrentPeriodEnd
		c.CurrentPeriodEnd = &t
	}
	return &c
}
