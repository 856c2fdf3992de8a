package billing

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/billsync/pkg/logger"
)

// Outcome is the result of dispatching an authenticated event.
// Every outcome is a success from the provider's point of view.
type Outcome string

const (
	// OutcomeApplied means the event changed the stored record.
	OutcomeApplied Outcome = "applied"
	// OutcomeStale means the event was older than the stored state and was discarded.
	OutcomeStale Outcome = "stale"
	// OutcomeIgnored means the event kind or object is not tracked by billing.
	OutcomeIgnored Outcome = "ignored"
)

// Dispatch routes an event to the reducer. It returns only after the change
// is durably applied or deliberately skipped, and is safe to repeat for the
// same event.
func (s *service) Dispatch(ctx context.Context, event Event) (Outcome, error) {
	var (
		outcome Outcome
		err     error
	)

	switch ev := event.(type) {
	case CheckoutCompleted:
		outcome, err = s.reduceCheckoutCompleted(ctx, ev)
	case SubscriptionUpdated:
		outcome, err = s.reduceSubscriptionUpdated(ctx, ev)
	case SubscriptionDeleted:
		outcome, err = s.reduceSubscriptionDeleted(ctx, ev)
	case Unhandled:
		outcome = OutcomeIgnored
	case nil:
		return "", fmt.Errorf("%w: nil event", ErrMalformedEvent)
	default:
		outcome = OutcomeIgnored
	}

	h := event.Header()
	if err != nil {
		s.log.ErrorContext(ctx, "Webhook event failed",
			logger.EventID(h.ID),
			logger.EventType(h.ProviderType),
			logger.Error(err),
		)
		return "", err
	}

	s.log.InfoContext(ctx, "Webhook event processed",
		logger.EventID(h.ID),
		logger.EventType(h.ProviderType),
		logger.Outcome(string(outcome)),
	)
	return outcome, nil
}
