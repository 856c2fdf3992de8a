package billingapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the billing HTTP instruments.
type Metrics struct {
	WebhookRequests *prometheus.CounterVec
	WebhookDuration *prometheus.HistogramVec
	RedirectTotal   *prometheus.CounterVec
}

// NewMetrics registers the instruments on reg. A nil reg uses the default
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		// WebhookRequests counts deliveries by handling outcome and HTTP status.
		WebhookRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billsync",
			Subsystem: "billing",
			Name:      "webhook_requests_total",
			Help:      "Total provider webhook deliveries by outcome and HTTP status.",
		}, []string{"outcome", "status"}),

		WebhookDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "billsync",
			Subsystem: "billing",
			Name:      "webhook_duration_seconds",
			Help:      "Provider webhook handling duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),

		// RedirectTotal counts checkout and portal requests by result.
		RedirectTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billsync",
			Subsystem: "billing",
			Name:      "redirect_requests_total",
			Help:      "Total checkout and portal redirect requests by flow and HTTP status.",
		}, []string{"flow", "status"}),
	}
}
