package billingapi

import (
	"context"

	"github.com/dmitrymomot/billsync/pkg/billing"
)

type userContextKey struct{}

// WithUser stores the authenticated user for the billing handlers.
func WithUser(ctx context.Context, user billing.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the user stored by WithUser.
func UserFromContext(ctx context.Context) (billing.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(billing.User)
	return user, ok && user.ID != ""
}
