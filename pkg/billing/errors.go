package billing

import "errors"

var (
	// ErrInvalidSignature is returned when a webhook fails authentication.
	// Callers must not mutate state or reveal anything else about the request.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent is returned for an authentic webhook whose payload cannot be decoded.
	ErrMalformedEvent = errors.New("malformed webhook event")

	ErrInvalidPlan    = errors.New("invalid plan")
	ErrInvalidCatalog = errors.New("invalid plan catalog")
	ErrNoSubscription = errors.New("no subscription for user")
	ErrMissingUserID  = errors.New("user id is required")

	// ErrProviderUnavailable wraps any failed call to the payment provider. Retryable.
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	// ErrCustomerDetailsRequired is returned when the provider needs user
	// details, such as an email, that the caller did not supply. Not retryable.
	ErrCustomerDetailsRequired = errors.New("customer details required by provider")
	// ErrCustomerDeletionUnsupported is returned by wrappers whose provider cannot delete customers.
	ErrCustomerDeletionUnsupported = errors.New("provider cannot delete customers")
	// ErrUnknownPrice is returned when neither the provider price nor the checkout metadata maps to a plan.
	ErrUnknownPrice = errors.New("provider price does not map to a plan")

	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrSubscriptionNotAttributable is returned when a change matches no record
	// and carries no user id to create one.
	ErrSubscriptionNotAttributable = errors.New("subscription change cannot be attributed to a user")
	ErrConcurrentUpdate            = errors.New("subscription changed concurrently, retries exhausted")
	ErrStoreFailure                = errors.New("subscription store failure")
)
