package billing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billsync/pkg/logger"
)

// StartCheckout validates the plan, resolves the provider customer and opens
// a hosted checkout. The only state it may persist is the customer binding;
// status and subscription id are written by the reducer once the provider
// confirms the subscription.
func (s *service) StartCheckout(ctx context.Context, user User, planID PlanID, successURL, cancelURL string) (*RedirectTarget, error) {
	if user.ID == "" {
		return nil, ErrMissingUserID
	}
	plan, err := s.catalog.Purchasable(planID)
	if err != nil {
		return nil, err
	}

	customerID, err := s.ResolveCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	target, err := s.provider.CreateCheckoutSession(ctx, CheckoutRequest{
		CustomerID:     customerID,
		PriceID:        plan.PriceID,
		SuccessURL:     successURL,
		CancelURL:      cancelURL,
		Metadata:       Metadata{UserID: user.ID, Plan: plan.ID},
		IdempotencyKey: "billing:checkout:" + uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}
	if target == nil || target.URL == "" {
		return nil, errors.Join(ErrProviderUnavailable, errors.New("checkout session has no redirect url"))
	}

	s.log.InfoContext(ctx, "Checkout session created",
		logger.UserID(user.ID),
		logger.CustomerID(customerID),
		slog.String("plan", string(plan.ID)),
		slog.String("session_id", target.ID),
	)
	return target, nil
}
