// Package paddle adapts Paddle Billing (github.com/PaddleHQ/paddle-go-sdk/v4)
// to the billing Provider and Authenticator interfaces.
//
// Paddle has no checkout session object; a draft transaction with a checkout
// URL plays that role and its transaction.completed notification stands in
// for checkout completion.
//
// Notifications are verified with the SDK WebhookVerifier. Signatures whose
// ts is further than Config.WebhookTolerance from now are rejected, as are
// authentic notifications without a valid occurred_at.
//
// Customers need an email. CreateCustomer fails with
// billing.ErrCustomerDetailsRequired when the user has none.
package paddle
