// Package billingapi exposes the billing service over HTTP with chi.
//
//	POST /webhook       provider deliveries, authenticated by signature
//	GET  /plans         public plan catalog
//	POST /checkout      {"plan","success_url","cancel_url"} -> redirect target
//	POST /portal        {"return_url"} -> redirect target
//	GET  /subscription  current plan, status and entitlements
//
// All routes but the first two need a billing.User in the request context,
// set with WithUser by the application's auth middleware or, behind a
// trusted gateway, by TrustedHeaders.
//
// # Mounting
//
//	api := billingapi.NewHandler(svc, cfg,
//		billingapi.WithLogger(log),
//		billingapi.WithMetrics(billingapi.NewMetrics(reg)),
//	)
//
//	r := chi.NewRouter()
//	r.Use(middleware.RequestID, authMiddleware)
//	r.Mount("/billing", api.Router())
//
// where authMiddleware stores the signed-in user:
//
//	ctx := billingapi.WithUser(r.Context(), billing.User{ID: id, Email: email})
//
// With Config.TrustUserHeader the X-User-ID, X-User-Email and X-User-Name
// headers are read instead. Enable it only when a proxy in front of the
// service strips those headers from client requests.
//
// # Webhook responses
//
// The webhook body is read raw, capped at Config.WebhookMaxBody, and handled
// under a context detached from the client with Config.WebhookTimeout as the
// bound, so a delivery that started writing finishes even if the provider
// hangs up.
//
//	200 {"received":true,"outcome":"applied"}   also "stale" and "ignored"
//	400 {"error":"invalid signature"}           nothing was read or written
//	400 {"error":"malformed event"}             authentic but undecodable
//	413 {"error":"payload too large"}
//	500 {"error":"processing failed"}           the provider retries
//
// # Checkout and portal responses
//
// Success returns {"id","url"}; the client redirects the browser to url.
// Failures map to 400 for an invalid plan or a missing customer, 401 without
// a user, 422 when the provider needs the user's email, 502 when the
// provider is unavailable and 500 otherwise.
//
// # Metrics
//
// NewMetrics registers on the given registerer:
//
//   - billsync_billing_webhook_requests_total{outcome,status}
//   - billsync_billing_webhook_duration_seconds{outcome}
//   - billsync_billing_redirect_requests_total{flow,status}
package billingapi
