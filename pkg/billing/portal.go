package billing

import (
	"context"
	"errors"
)

// OpenPortal opens the provider-hosted self-service page for the user.
// It fails with ErrNoSubscription until a checkout bound a customer.
func (s *service) OpenPortal(ctx context.Context, user User, returnURL string) (*RedirectTarget, error) {
	if user.ID == "" {
		return nil, ErrMissingUserID
	}

	sub, err := s.store.GetByUser(ctx, user.ID)
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	if !sub.HasCustomer() {
		return nil, ErrNoSubscription
	}

	target, err := s.provider.CreatePortalSession(ctx, PortalRequest{
		CustomerID: sub.CustomerID,
		ReturnURL:  returnURL,
	})
	if err != nil {
		return nil, err
	}
	if target == nil || target.URL == "" {
		return nil, errors.Join(ErrProviderUnavailable, errors.New("portal session has no redirect url"))
	}
	return target, nil
}
