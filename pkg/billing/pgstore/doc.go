// Package pgstore implements billing.Store on PostgreSQL with pgx/v5.
//
// # Schema
//
// The schema lives in the embedded Migrations and is applied with pg.Migrate,
// either at startup or from the migrate command:
//
//	pool, err := pg.Connect(ctx, pgCfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, pgCfg, log); err != nil {
//		return err
//	}
//	store := pgstore.New(pool)
//
// One row per user holds the plan, status, provider ids, period end and the
// timestamp of the last applied event. Empty customer and subscription ids are
// stored as NULL so the UNIQUE constraints only bind real provider ids. Plan
// ids are not constrained by the schema; the catalog validates them before
// they reach the store.
//
// # Concurrency
//
// Upsert runs in a single transaction. It locks the target row with
// SELECT ... FOR UPDATE, trying the lookups of billing.Change in order, and
// inserts a placeholder row with ON CONFLICT DO NOTHING when the change
// names a user that has no row yet. billing.Merge then decides the write, so two deliveries
// of the same event serialize on the row and the second is reported as not
// applied.
//
// EnsureCustomer is a single INSERT ... ON CONFLICT that only sets
// customer_id while it is NULL, which makes the first bound customer permanent.
//
// # Testing
//
// The package tests run against a real database and are skipped unless
// BILLSYNC_TEST_PG_URL is set:
//
//	BILLSYNC_TEST_PG_URL=postgres://localhost:5432/billsync_test?sslmode=disable go test ./pkg/billing/pgstore/...
package pgstore
