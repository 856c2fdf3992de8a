package billingapi

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/billsync/pkg/billing"
)

// redirectStatus maps checkout and portal failures to HTTP statuses.
func redirectStatus(err error) (int, string) {
	switch {
	case errors.Is(err, billing.ErrMissingUserID):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, billing.ErrInvalidPlan):
		return http.StatusBadRequest, "invalid plan selected"
	case errors.Is(err, billing.ErrNoSubscription):
		return http.StatusBadRequest, "no subscription found for this user"
	case errors.Is(err, billing.ErrCustomerDetailsRequired):
		return http.StatusUnprocessableEntity, "customer email is required"
	case errors.Is(err, billing.ErrProviderUnavailable):
		return http.StatusBadGateway, "payment provider unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// webhookOutcome maps a webhook failure to its metric label and HTTP status.
// Only rejections of the request itself are 4xx; everything else is 500 so
// the provider redelivers.
func webhookOutcome(err error) (string, int) {
	switch {
	case errors.Is(err, billing.ErrInvalidSignature):
		return OutcomeSignatureRejected, http.StatusBadRequest
	case errors.Is(err, billing.ErrMalformedEvent):
		return OutcomeMalformed, http.StatusBadRequest
	default:
		return OutcomeFailed, http.StatusInternalServerError
	}
}
