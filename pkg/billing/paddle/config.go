package paddle

import "time"

// Config holds Paddle Billing credentials.
type Config struct {
	APIKey           string        `env:"PADDLE_API_KEY"`
	WebhookSecret    string        `env:"PADDLE_WEBHOOK_SECRET"`
	WebhookTolerance time.Duration `env:"PADDLE_WEBHOOK_TOLERANCE" envDefault:"5m"`   // maximum accepted signature age
	Environment      string        `env:"PADDLE_ENVIRONMENT" envDefault:"production"` // production or sandbox
	CheckoutURL      string        `env:"PADDLE_CHECKOUT_URL"`                        // approved page hosting Paddle.js, optional
}
