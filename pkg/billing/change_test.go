package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billsync/pkg/billing"
)

var (
	t0  = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now = t0.Add(time.Hour)
)

func active(userID, subID string, at time.Time) *billing.Subscription {
	return &billing.Subscription{
		UserID:         userID,
		Plan:           billing.PlanPremium,
		Status:         billing.StatusActive,
		CustomerID:     "cus_" + userID,
		SubscriptionID: subID,
		LastEventAt:    at,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	t.Run("creates record from nothing", func(t *testing.T) {
		t.Parallel()
		end := t0.Add(30 * 24 * time.Hour)
		next, applied := billing.Merge(nil, billing.Change{
			UserID:           "u1",
			CustomerID:       "cus_1",
			SubscriptionID:   "sub_1",
			Plan:             billing.PlanPro,
			Status:           billing.StatusActive,
			CurrentPeriodEnd: &end,
			EventAt:          t0,
		}, now)

		require.True(t, applied)
		assert.Equal(t, "u1", next.UserID)
		assert.Equal(t, billing.PlanPro, next.Plan)
		assert.Equal(t, billing.StatusActive, next.Status)
		assert.Equal(t, "cus_1", next.CustomerID)
		assert.Equal(t, "sub_1", next.SubscriptionID)
		assert.Equal(t, end, *next.CurrentPeriodEnd)
		assert.Equal(t, t0, next.LastEventAt)
		assert.Equal(t, now, next.CreatedAt)
		assert.Equal(t, now, next.UpdatedAt)
	})

	t.Run("older event is discarded", func(t *testing.T) {
		t.Parallel()
		current := active("u1", "sub_1", t0)
		next, applied := billing.Merge(current, billing.Change{
			SubscriptionID: "sub_1",
			Status:         billing.StatusPastDue,
			EventAt:        t0.Add(-time.Second),
		}, now)

		assert.False(t, applied)
		assert.Equal(t, billing.StatusActive, next.Status)
		assert.Equal(t, t0, next.LastEventAt)
	})

	t.Run("redelivery is a no-op", func(t *testing.T) {
		t.Parallel()
		current := active("u1", "sub_1", t0)
		_, applied := billing.Merge(current, billing.Change{
			SubscriptionID: "sub_1",
			Status:         billing.StatusActive,
			EventAt:        t0,
		}, now)
		assert.False(t, applied)
	})

	t.Run("tie resolves to canceled", func(t *testing.T) {
		t.Parallel()
		current := active("u1", "sub_1", t0)
		next, applied := billing.Merge(current, billing.Change{
			SubscriptionID: "sub_1",
			Status:         billing.StatusCanceled,
			EventAt:        t0,
		}, now)

		require.True(t, applied)
		assert.Equal(t, billing.StatusCanceled, next.Status)
		assert.Equal(t, billing.PlanPremium, next.Plan, "plan is kept for display")

		_, applied = billing.Merge(next, billing.Change{
			SubscriptionID: "sub_1",
			Status:         billing.StatusActive,
			EventAt:        t0,
		}, now)
		assert.False(t, applied, "canceled is not reopened by a tie")
	})

	t.Run("customer id is write-once", func(t *testing.T) {
		t.Parallel()
		current := active("u1", "sub_1", t0)
		next, applied := billing.Merge(current, billing.Change{
			CustomerID:     "cus_other",
			SubscriptionID: "sub_1",
			EventAt:        t0.Add(time.Minute),
		}, now)

		require.True(t, applied)
		assert.Equal(t, "cus_u1", next.CustomerID)
	})

	t.Run("foreign subscription does not overwrite", func(t *testing.T) {
		t.Parallel()
		current := active("u1", "sub_2", t0)
		next, applied := billing.Merge(current, billing.Change{
			UserID:         "u1",
			SubscriptionID: "sub_1",
			Status:         billing.StatusCanceled,
			EventAt:        t0.Add(time.Minute),
		}, now)

		assert.False(t, applied)
		assert.Equal(t, "sub_2", next.SubscriptionID)
		assert.Equal(t, billing.StatusActive, next.Status)
	})

	t.Run("replace binds a new subscription", func(t *testing.T) {
		t.Parallel()
		current := active("u1", "sub_1", t0)
		current.Status = billing.StatusCanceled
		next, applied := billing.Merge(current, billing.Change{
			UserID:              "u1",
			SubscriptionID:      "sub_2",
			Plan:                billing.PlanPro,
			Status:              billing.StatusActive,
			EventAt:             t0.Add(time.Minute),
			ReplaceSubscription: true,
		}, now)

		require.True(t, applied)
		assert.Equal(t, "sub_2", next.SubscriptionID)
		assert.Equal(t, billing.PlanPro, next.Plan)
		assert.Equal(t, billing.StatusActive, next.Status)
	})

	t.Run("current is not modified", func(t *testing.T) {
		t.Parallel()
		current := active("u1", "sub_1", t0)
		_, applied := billing.Merge(current, billing.Change{
			SubscriptionID: "sub_1",
			Status:         billing.StatusPastDue,
			EventAt:        t0.Add(time.Minute),
		}, now)

		require.True(t, applied)
		assert.Equal(t, billing.StatusActive, current.Status)
		assert.Equal(t, t0, current.LastEventAt)
	})
}

func TestMergeOrderIndependence(t *testing.T) {
	t.Parallel()

	changes := []billing.Change{
		{UserID: "u1", SubscriptionID: "sub_1", Plan: billing.PlanPremium, Status: billing.StatusIncomplete, EventAt: t0},
		{SubscriptionID: "sub_1", Status: billing.StatusActive, EventAt: t0.Add(time.Minute)},
		{SubscriptionID: "sub_1", Plan: billing.PlanPro, Status: billing.StatusActive, EventAt: t0.Add(2 * time.Minute)},
	}

	apply := func(order []int) *billing.Subscription {
		var sub *billing.Subscription
		for _, i := range order {
			c := changes[i]
			if sub == nil && c.UserID == "" {
				c.UserID = "u1"
			}
			sub, _ = billing.Merge(sub, c, now)
		}
		return sub
	}

	inOrder := apply([]int{0, 1, 2})
	reversed := apply([]int{2, 1, 0})

	assert.Equal(t, billing.PlanPro, inOrder.Plan)
	assert.Equal(t, billing.StatusActive, inOrder.Status)
	assert.Equal(t, inOrder.Plan, reversed.Plan)
	assert.Equal(t, inOrder.Status, reversed.Status)
	assert.Equal(t, inOrder.LastEventAt, reversed.LastEventAt)
}

func TestChangeLookups(t *testing.T) {
	t.Parallel()

	c := billing.Change{UserID: "u1", CustomerID: "cus_1", SubscriptionID: "sub_1"}
	assert.Equal(t, []billing.Lookup{
		{Field: billing.LookupSubscriptionID, Value: "sub_1"},
		{Field: billing.LookupUserID, Value: "u1"},
		{Field: billing.LookupCustomerID, Value: "cus_1"},
	}, c.Lookups())

	c.ReplaceSubscription = true
	assert.Equal(t, billing.LookupUserID, c.Lookups()[0].Field)

	assert.Equal(t, []billing.Lookup{{Field: billing.LookupCustomerID, Value: "cus_1"}},
		billing.Change{CustomerID: "cus_1"}.Lookups())
	assert.Empty(t, billing.Change{}.Lookups())
}

func TestEffectivePlan(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status billing.Status
		want   billing.PlanID
	}{
		{billing.StatusActive, billing.PlanPremium},
		{billing.StatusPastDue, billing.PlanPremium},
		{billing.StatusIncomplete, billing.PlanFree},
		{billing.StatusCanceled, billing.PlanFree},
		{billing.StatusNone, billing.PlanFree},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			t.Parallel()
			sub := &billing.Subscription{Plan: billing.PlanPremium, Status: tc.status}
			assert.Equal(t, tc.want, sub.EffectivePlan())
		})
	}

	assert.Equal(t, billing.PlanFree, billing.FreeSubscription("u1").EffectivePlan())
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, billing.StatusActive, billing.ParseStatus("trialing"))
	assert.Equal(t, billing.StatusPastDue, billing.ParseStatus("unpaid"))
	assert.Equal(t, billing.StatusCanceled, billing.ParseStatus("incomplete_expired"))
	assert.Equal(t, billing.StatusIncomplete, billing.ParseStatus("something_new"))
}
