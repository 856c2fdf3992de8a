package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/billsync/pkg/billing"
	"github.com/dmitrymomot/billsync/pkg/pg"
)

// DB is the subset of *pgxpool.Pool used by Store.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a billing.Store on PostgreSQL. Every Upsert runs in one
// transaction holding a row lock on the target record.
type Store struct {
	db  DB
	now func() time.Time
}

var _ billing.Store = (*Store)(nil)

func New(db DB) *Store {
	if db == nil {
		panic("pgstore: DB is required")
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const columns = `user_id, plan, status, COALESCE(customer_id, ''), COALESCE(subscription_id, ''),
	current_period_end, last_event_at, created_at, updated_at`

var lockQueries = map[billing.LookupField]string{
	billing.LookupSubscriptionID: `SELECT ` + columns + ` FROM billing_subscriptions WHERE subscription_id = $1 FOR UPDATE`,
	billing.LookupUserID:         `SELECT ` + columns + ` FROM billing_subscriptions WHERE user_id = $1 FOR UPDATE`,
	billing.LookupCustomerID:     `SELECT ` + columns + ` FROM billing_subscriptions WHERE customer_id = $1 FOR UPDATE`,
}

func (s *Store) GetByUser(ctx context.Context, userID string) (*billing.Subscription, error) {
	if userID == "" {
		return nil, billing.ErrMissingUserID
	}
	sub, err := scan(s.db.QueryRow(ctx, `SELECT `+columns+` FROM billing_subscriptions WHERE user_id = $1`, userID))
	if pg.IsNotFoundError(err) {
		return billing.FreeSubscription(userID), nil
	}
	if err != nil {
		return nil, storeErr("get by user", err)
	}
	return sub, nil
}

func (s *Store) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	sub, err := scan(s.db.QueryRow(ctx, `SELECT `+columns+` FROM billing_subscriptions WHERE subscription_id = $1`, subscriptionID))
	if pg.IsNotFoundError(err) {
		return nil, billing.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, storeErr("get by subscription", err)
	}
	return sub, nil
}

// EnsureCustomer is a single create-if-absent statement; an already bound
// customer id is never overwritten.
func (s *Store) EnsureCustomer(ctx context.Context, userID, customerID string) (string, error) {
	if userID == "" {
		return "", billing.ErrMissingUserID
	}
	var bound string
	err := s.db.QueryRow(ctx, `
		INSERT INTO billing_subscriptions (user_id, customer_id, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			customer_id = COALESCE(billing_subscriptions.customer_id, EXCLUDED.customer_id),
			updated_at = CASE
				WHEN billing_subscriptions.customer_id IS NULL THEN EXCLUDED.updated_at
				ELSE billing_subscriptions.updated_at
			END
		RETURNING COALESCE(customer_id, '')`,
		userID, customerID, s.now(),
	).Scan(&bound)
	if err != nil {
		return "", storeErr("ensure customer", err)
	}
	return bound, nil
}

func (s *Store) Upsert(ctx context.Context, c billing.Change) (*billing.Subscription, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, storeErr("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := s.lockTarget(ctx, tx, c)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	next, applied := billing.Merge(current, c, now)
	if !applied {
		return next, false, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE billing_subscriptions SET
			plan = $2,
			status = $3,
			customer_id = NULLIF($4, ''),
			subscription_id = NULLIF($5, ''),
			current_period_end = $6,
			last_event_at = $7,
			updated_at = $8
		WHERE user_id = $1`,
		next.UserID,
		string(next.Plan),
		string(next.Status),
		next.CustomerID,
		next.SubscriptionID,
		next.CurrentPeriodEnd,
		nullTime(next.LastEventAt),
		next.UpdatedAt,
	)
	if err != nil {
		return nil, false, storeErr("update", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, storeErr("commit", err)
	}
	return next, true, nil
}

// lockTarget row-locks the record c targets. When nothing matches and c
// names a user, an empty record is created first so there is a row to lock;
// concurrent creators converge on the same row through the primary key.
// A nil record means the row was just created and carries no state.
func (s *Store) lockTarget(ctx context.Context, tx pgx.Tx, c billing.Change) (*billing.Subscription, error) {
	for _, l := range c.Lookups() {
		sub, err := scan(tx.QueryRow(ctx, lockQueries[l.Field], l.Value))
		if err == nil {
			return sub, nil
		}
		if !pg.IsNotFoundError(err) {
			return nil, storeErr("lock "+string(l.Field), err)
		}
	}

	if c.UserID == "" {
		return nil, billing.ErrSubscriptionNotAttributable
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO billing_subscriptions (user_id, created_at, updated_at)
		VALUES ($1, $2, $2)
		ON CONFLICT (user_id) DO NOTHING`,
		c.UserID, s.now(),
	)
	if err != nil {
		return nil, storeErr("insert", err)
	}

	sub, err := scan(tx.QueryRow(ctx, lockQueries[billing.LookupUserID], c.UserID))
	if err != nil {
		return nil, storeErr("lock user_id", err)
	}
	if tag.RowsAffected() == 1 {
		return nil, nil
	}
	return sub, nil
}

func scan(row pgx.Row) (*billing.Subscription, error) {
	var (
		sub       billing.Subscription
		plan      string
		status    string
		periodEnd *time.Time
		lastEvent *time.Time
	)
	err := row.Scan(
		&sub.UserID,
		&plan,
		&status,
		&sub.CustomerID,
		&sub.SubscriptionID,
		&periodEnd,
		&lastEvent,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sub.Plan = billing.PlanID(plan)
	sub.Status = billing.Status(status)
	if periodEnd != nil {
		t := periodEnd.UTC()
		sub.CurrentPeriodEnd = &t
	}
	if lastEvent != nil {
		sub.LastEventAt = lastEvent.UTC()
	}
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	return &sub, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func storeErr(op string, err error) error {
	return errors.Join(billing.ErrStoreFailure, fmt.Errorf("pgstore: %s: %w", op, err))
}
