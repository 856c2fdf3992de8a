package mongostore

import (
	"time"

	"github.com/dmitrymomot/billsync/pkg/billing"
)

// document is the stored form of a subscription. Provider ids are omitted
// when empty so the sparse unique indexes ignore them.
type document struct {
	UserID           string     `bson:"_id"`
	Plan             string     `bson:"plan"`
	Status           string     `bson:"status"`
	CustomerID       string     `bson:"customer_id,omitempty"`
	SubscriptionID   string     `bson:"subscription_id,omitempty"`
	CurrentPeriodEnd *time.Time `bson:"current_period_end,omitempty"`
	LastEventAt      time.Time  `bson:"last_event_at"`
	CreatedAt        time.Time  `bson:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at"`
	Version          int64      `bson:"version"`
}

func fromSubscription(s *billing.Subscription, version int64) document {
	return document{
		UserID:           s.UserID,
		Plan:             string(s.Plan),
		Status:           string(s.Status),
		CustomerID:       s.CustomerID,
		SubscriptionID:   s.SubscriptionID,
		CurrentPeriodEnd: s.CurrentPeriodEnd,
		LastEventAt:      s.LastEventAt,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
		Version:          version,
	}
}

func (d document) subscription() *billing.Subscription {
	sub := &billing.Subscription{
		UserID:         d.UserID,
		Plan:           billing.PlanID(d.Plan),
		Status:         billing.Status(d.Status),
		CustomerID:     d.CustomerID,
		SubscriptionID: d.SubscriptionID,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
	if d.CurrentPeriodEnd != nil {
		t := d.CurrentPeriodEnd.UTC()
		sub.CurrentPeriodEnd = &t
	}
	if !d.LastEventAt.IsZero() && d.LastEventAt.Unix() > 0 {
		sub.LastEventAt = d.LastEventAt.UTC()
	}
	return sub
}
