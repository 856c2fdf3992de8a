// Package billing keeps a local read model of each user's subscription in
// sync with an external payment provider.
//
// The provider is the source of truth. Billing mirrors it through two paths:
//
//   - Redirect flows started by the user: StartCheckout resolves (or creates)
//     the provider customer and opens a hosted checkout, OpenPortal opens the
//     provider's self-service page.
//   - Webhooks sent by the provider: HandleWebhook verifies the signature over
//     the raw body, decodes a closed set of events and dispatches them to the
//     reducer, which writes the Store.
//
// # Ordering and idempotency
//
// Webhooks may arrive late, out of order or more than once. Every write goes
// through Merge, which applies a Change only when its provider timestamp is
// newer than the last applied one. Re-deliveries and stale events become
// no-ops, so the provider's at-least-once retries are safe. Stores run the
// lookup, Merge and write as one atomic step.
//
// # Customers
//
// Each user gets at most one provider customer. Concurrent resolutions in one
// process share a single call, processes serialize on a Locker (see
// pkg/billing/redislock), and Store.EnsureCustomer binds the id with a
// create-if-absent write. A duplicate created by a lost race is deleted when
// the provider implements CustomerDeleter and logged otherwise.
//
// # Usage
//
//	catalog, _ := billing.NewCatalog(billing.DefaultPlans("price_premium", "price_pro")...)
//	provider, _ := stripe.NewProvider(stripeCfg)
//	auth, _ := stripe.NewAuthenticator(stripeCfg)
//	svc := billing.NewService(catalog,
//		billing.NewBreakerProvider(provider, breakerCfg, log),
//		auth,
//		pgstore.New(pool),
//		billing.WithLogger(log),
//		billing.WithLocker(redislock.New(redisClient, lockCfg)),
//	)
//
//	target, err := svc.StartCheckout(ctx, user, billing.PlanPremium, successURL, cancelURL)
//
// Other parts of the application gate features with GetByUser and the catalog:
//
//	sub, _ := svc.GetByUser(ctx, userID)
//	limit := svc.Catalog().Limit(sub.EffectivePlan(), billing.ResourceContents)
//	if svc.Catalog().HasFeature(sub.EffectivePlan(), billing.FeatureExport) {
//		// show the export button
//	}
//
// A user with no record reads as FreeSubscription. EffectivePlan is the free
// plan unless the subscription is active or past due, so a canceled premium
// user loses entitlements as soon as the cancellation is applied.
//
// # Plans
//
// The Catalog is fixed at startup. DefaultPlans binds the stock free, premium
// and pro plans to provider prices; LoadCatalogFile reads any set of plans
// from YAML:
//
//	plans:
//	  - id: free
//	    limits: {contents: 50, team_members: 1}
//	  - id: team
//	    price_id: price_team
//	    lookup_key: team_monthly
//	    limits: {contents: -1, team_members: 25}
//	    features: [team_collaboration, export]
//
// Only plans with a price id can be purchased. Webhook prices are mapped back
// to plans by lookup key first, then by price id.
//
// # Webhooks
//
// HandleWebhook returns an Outcome on success:
//
//   - OutcomeApplied: the record changed
//   - OutcomeStale: the event was older than the stored state, or a redelivery
//   - OutcomeIgnored: the event kind or object is not tracked
//
// All three are acknowledged to the provider. Errors decide redelivery:
//
//	outcome, err := svc.HandleWebhook(ctx, body, r.Header.Get(svc.SignatureHeader()))
//	switch {
//	case errors.Is(err, billing.ErrInvalidSignature):
//		// 400, nothing was read or written
//	case errors.Is(err, billing.ErrMalformedEvent):
//		// 400, authentic but undecodable
//	case err != nil:
//		// 500, the provider retries
//	}
//
// # Error Handling
//
// Checkout and portal flows return:
//
//   - ErrMissingUserID when the caller is anonymous
//   - ErrInvalidPlan for unknown or free plans, before any provider call
//   - ErrNoSubscription from OpenPortal when the user never had a customer
//   - ErrCustomerDetailsRequired when the provider needs an email that is missing
//   - ErrProviderUnavailable for provider failures and an open circuit breaker
//   - ErrStoreFailure when the Store cannot be read or written
//
// # Storage Implementation
//
// MemoryStore serves tests and single-instance development. Durable stores
// live in pkg/billing/pgstore and pkg/billing/mongostore. A custom Store must
// run Upsert as lookup, Merge and write under one lock or transaction, and
// must keep customer and subscription ids unique across records.
package billing
