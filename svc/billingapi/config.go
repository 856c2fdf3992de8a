package billingapi

import "time"

// Config tunes the billing HTTP endpoints.
type Config struct {
	WebhookTimeout  time.Duration `env:"BILLING_WEBHOOK_TIMEOUT" envDefault:"10s"`      // bound on handling one delivery
	WebhookMaxBody  int64         `env:"BILLING_WEBHOOK_MAX_BODY" envDefault:"1048576"` // maximum webhook payload size in bytes
	RequestMaxBody  int64         `env:"BILLING_REQUEST_MAX_BODY" envDefault:"16384"`   // maximum checkout and portal body size
	TrustUserHeader bool          `env:"BILLING_TRUST_USER_HEADERS" envDefault:"false"` // read the user from X-User-* headers
}
