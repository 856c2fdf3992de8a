package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/billsync/pkg/logger"
)

// reduceCheckoutCompleted binds the new provider subscription to the user.
// Status, price and period are re-read from the provider; the checkout
// metadata only identifies the user and backs up an unknown price.
func (s *service) reduceCheckoutCompleted(ctx context.Context, ev CheckoutCompleted) (Outcome, error) {
	if ev.SubscriptionID == "" {
		return OutcomeIgnored, nil
	}

	state, err := s.provider.GetSubscription(ctx, ev.SubscriptionID)
	if err != nil {
		return "", err
	}
	if state == nil {
		return "", errors.Join(ErrProviderUnavailable, errors.New("provider returned no subscription"))
	}

	plan, ok := s.resolvePlan(ctx, *state, ev.Metadata.Plan)
	if !ok {
		return "", errors.Join(ErrUnknownPrice, errors.New("price "+state.PriceID))
	}

	userID := ev.Metadata.UserID
	if userID == "" {
		userID = state.Metadata.UserID
	}

	c := Change{
		UserID:              userID,
		CustomerID:          firstNonEmpty(state.CustomerID, ev.CustomerID),
		SubscriptionID:      ev.SubscriptionID,
		Plan:                plan,
		Status:              state.Status,
		CurrentPeriodEnd:    periodEnd(*state),
		EventAt:             ev.OccurredAt,
		ReplaceSubscription: userID != "",
	}
	return s.apply(ctx, ev.EventHeader, c)
}

// reduceSubscriptionUpdated mirrors a lifecycle change. A subscription seen
// before its checkout completion creates the record from its metadata.
func (s *service) reduceSubscriptionUpdated(ctx context.Context, ev SubscriptionUpdated) (Outcome, error) {
	state := ev.Subscription
	if state.ID == "" {
		return "", errors.Join(ErrMalformedEvent, errors.New("subscription id is missing"))
	}

	// unknown prices keep the stored plan
	plan, _ := s.resolvePlan(ctx, state, state.Metadata.Plan)

	c := Change{
		UserID:           state.Metadata.UserID,
		CustomerID:       state.CustomerID,
		SubscriptionID:   state.ID,
		Plan:             plan,
		Status:           state.Status,
		CurrentPeriodEnd: periodEnd(state),
		EventAt:          ev.OccurredAt,
	}
	return s.apply(ctx, ev.EventHeader, c)
}

// reduceSubscriptionDeleted marks the subscription canceled. Plan and period
// end are kept for display.
func (s *service) reduceSubscriptionDeleted(ctx context.Context, ev SubscriptionDeleted) (Outcome, error) {
	state := ev.Subscription
	if state.ID == "" {
		return "", errors.Join(ErrMalformedEvent, errors.New("subscription id is missing"))
	}

	c := Change{
		UserID:         state.Metadata.UserID,
		CustomerID:     state.CustomerID,
		SubscriptionID: state.ID,
		Status:         StatusCanceled,
		EventAt:        ev.OccurredAt,
	}
	outcome, err := s.apply(ctx, ev.EventHeader, c)
	if errors.Is(err, ErrSubscriptionNotAttributable) {
		// nothing local to cancel
		return OutcomeIgnored, nil
	}
	return outcome, err
}

func (s *service) apply(ctx context.Context, h EventHeader, c Change) (Outcome, error) {
	var (
		sub     *Subscription
		applied bool
		err     error
	)
	if c.ReplaceSubscription {
		sub, applied, err = UpsertByUser(ctx, s.store, c)
	} else {
		sub, applied, err = UpsertBySubscriptionID(ctx, s.store, c)
	}
	switch {
	case errors.Is(err, ErrSubscriptionNotAttributable):
		return "", err
	case err != nil:
		return "", errors.Join(ErrStoreFailure, err)
	}

	if !applied {
		s.log.InfoContext(ctx, "Stale webhook event discarded",
			logger.EventID(h.ID),
			logger.SubscriptionID(c.SubscriptionID),
			slog.Time("event_at", c.EventAt),
			slog.Time("last_event_at", sub.LastEventAt),
		)
		return OutcomeStale, nil
	}

	s.log.DebugContext(ctx, "Subscription updated",
		logger.UserID(sub.UserID),
		logger.SubscriptionID(sub.SubscriptionID),
		slog.String("status", string(sub.Status)),
		slog.String("plan", string(sub.Plan)),
	)
	return OutcomeApplied, nil
}

// resolvePlan prefers the provider-reported price over the advisory plan.
func (s *service) resolvePlan(ctx context.Context, state SubscriptionState, advisory PlanID) (PlanID, bool) {
	if id, ok := s.catalog.ResolvePrice(state.LookupKey, state.PriceID); ok {
		return id, true
	}
	if _, err := s.catalog.Purchasable(advisory); err == nil {
		s.log.WarnContext(ctx, "Provider price not in catalog, using checkout plan",
			logger.SubscriptionID(state.ID),
			slog.String("price_id", state.PriceID),
			slog.String("plan", string(advisory)),
		)
		return advisory, true
	}
	return "", false
}

func periodEnd(state SubscriptionState) *time.Time {
	if state.CurrentPeriodEnd.IsZero() {
		return nil
	}
	t := state.CurrentPeriodEnd.UTC()
	return &t
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
