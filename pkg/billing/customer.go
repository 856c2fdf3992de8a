package billing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/billsync/pkg/logger"
)

const customerLockPrefix = "billing:customer:"

// ResolveCustomer returns the provider customer bound to the user, creating it
// on first use. At most one customer id is ever persisted per user: concurrent
// calls in this process share one resolution, calls across processes serialize
// on the Locker, and the store binds the id with a create-if-absent write.
//
// The shared resolution is detached from the caller's cancellation; a caller
// whose context ends stops waiting without failing the others.
func (s *service) ResolveCustomer(ctx context.Context, user User) (string, error) {
	if user.ID == "" {
		return "", ErrMissingUserID
	}

	shared := context.WithoutCancel(ctx)
	ch := s.customers.DoChan(user.ID, func() (any, error) {
		return s.resolveCustomer(shared, user)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *service) resolveCustomer(ctx context.Context, user User) (string, error) {
	sub, err := s.store.GetByUser(ctx, user.ID)
	if err != nil {
		return "", errors.Join(ErrStoreFailure, err)
	}
	if sub.HasCustomer() {
		return sub.CustomerID, nil
	}

	unlock, err := s.locker.Lock(ctx, customerLockPrefix+user.ID)
	if err != nil {
		return "", errors.Join(ErrStoreFailure, err)
	}
	defer unlock()

	// another process may have won while we waited for the lock
	if sub, err = s.store.GetByUser(ctx, user.ID); err != nil {
		return "", errors.Join(ErrStoreFailure, err)
	}
	if sub.HasCustomer() {
		return sub.CustomerID, nil
	}

	created, err := s.provider.CreateCustomer(ctx, CustomerRequest{
		UserID:         user.ID,
		Email:          user.Email,
		Name:           user.Name,
		IdempotencyKey: customerLockPrefix + user.ID,
	})
	if err != nil {
		return "", err
	}

	bound, err := s.store.EnsureCustomer(ctx, user.ID, created)
	if err != nil {
		s.log.ErrorContext(ctx, "Provider customer created but not persisted",
			logger.UserID(user.ID),
			logger.CustomerID(created),
			logger.Error(err),
		)
		return "", errors.Join(ErrStoreFailure, err)
	}

	if bound != created {
		s.reconcileOrphan(ctx, user.ID, bound, created)
	}
	return bound, nil
}

// reconcileOrphan handles a customer created by the losing side of a race.
func (s *service) reconcileOrphan(ctx context.Context, userID, bound, orphan string) {
	log := s.log.With(
		logger.UserID(userID),
		logger.CustomerID(bound),
		slog.String("orphan_customer_id", orphan),
	)

	deleter, ok := s.provider.(CustomerDeleter)
	if !ok {
		log.WarnContext(ctx, "Orphaned provider customer left for manual reconciliation")
		return
	}
	if err := deleter.DeleteCustomer(ctx, orphan); err != nil {
		if errors.Is(err, ErrCustomerDeletionUnsupported) {
			log.WarnContext(ctx, "Orphaned provider customer left for manual reconciliation")
			return
		}
		log.WarnContext(ctx, "Failed to delete orphaned provider customer", logger.Error(err))
		return
	}
	log.InfoContext(ctx, "Deleted orphaned provider customer")
}
