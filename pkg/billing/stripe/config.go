package stripe

import "time"

// Config holds Stripe credentials.
type Config struct {
	SecretKey        string        `env:"STRIPE_SECRET_KEY"`                        // API secret key, sk_live_... or sk_test_...
	WebhookSecret    string        `env:"STRIPE_WEBHOOK_SECRET"`                    // endpoint signing secret, whsec_...
	WebhookTolerance time.Duration `env:"STRIPE_WEBHOOK_TOLERANCE" envDefault:"5m"` // maximum accepted signature age
}
