// Package stripe adapts the Stripe API (github.com/stripe/stripe-go/v82) to the
// billing Provider and Authenticator interfaces.
package stripe
