package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/billsync/pkg/billing"
)

const (
	DefaultCollection = "billing_subscriptions"
	defaultAttempts   = 16
)

// Store is a billing.Store on MongoDB. Records are keyed by user id and
// carry a version counter; Upsert is an optimistic compare-and-set retried
// on conflict, so it works without multi-document transactions.
type Store struct {
	coll     *mongo.Collection
	attempts int
	now      func() time.Time
}

var _ billing.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithCollection overrides DefaultCollection.
func WithCollection(name string) Option {
	return func(s *Store) { s.coll = s.coll.Database().Collection(name) }
}

// WithMaxAttempts bounds the compare-and-set retries of one Upsert.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.attempts = n
		}
	}
}

func New(db *mongo.Database, opts ...Option) *Store {
	if db == nil {
		panic("mongostore: database is required")
	}
	s := &Store{
		coll:     db.Collection(DefaultCollection),
		attempts: defaultAttempts,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureIndexes creates the sparse unique indexes on the provider ids.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "customer_id", Value: 1}},
			Options: options.Index().SetName("customer_id_unique").SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "subscription_id", Value: 1}},
			Options: options.Index().SetName("subscription_id_unique").SetUnique(true).SetSparse(true),
		},
	})
	if err != nil {
		return storeErr("ensure indexes", err)
	}
	return nil
}

func (s *Store) GetByUser(ctx context.Context, userID string) (*billing.Subscription, error) {
	if userID == "" {
		return nil, billing.ErrMissingUserID
	}
	doc, err := s.findOne(ctx, bson.D{{Key: "_id", Value: userID}})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return billing.FreeSubscription(userID), nil
	}
	if err != nil {
		return nil, storeErr("get by user", err)
	}
	return doc.subscription(), nil
}

func (s *Store) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	doc, err := s.findOne(ctx, bson.D{{Key: "subscription_id", Value: subscriptionID}})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, billing.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, storeErr("get by subscription", err)
	}
	return doc.subscription(), nil
}

// EnsureCustomer only matches a record without a customer id. When one is
// already bound the upsert collides on _id and the bound id is read back.
func (s *Store) EnsureCustomer(ctx context.Context, userID, customerID string) (string, error) {
	if userID == "" {
		return "", billing.ErrMissingUserID
	}
	now := s.now()
	filter := bson.D{
		{Key: "_id", Value: userID},
		{Key: "customer_id", Value: bson.D{{Key: "$exists", Value: false}}},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "customer_id", Value: customerID},
			{Key: "updated_at", Value: now},
		}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "plan", Value: string(billing.PlanFree)},
			{Key: "status", Value: string(billing.StatusNone)},
			{Key: "last_event_at", Value: time.Time{}},
			{Key: "created_at", Value: now},
		}},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: int64(1)}}},
	}

	_, err := s.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err == nil {
		return customerID, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return "", storeErr("ensure customer", err)
	}

	doc, err := s.findOne(ctx, bson.D{{Key: "_id", Value: userID}})
	if err != nil {
		return "", storeErr("ensure customer", err)
	}
	return doc.CustomerID, nil
}

func (s *Store) Upsert(ctx context.Context, c billing.Change) (*billing.Subscription, bool, error) {
	for range s.attempts {
		current, err := s.find(ctx, c)
		if err != nil {
			return nil, false, err
		}
		if current == nil && c.UserID == "" {
			return nil, false, billing.ErrSubscriptionNotAttributable
		}

		var base *billing.Subscription
		if current != nil {
			base = current.subscription()
		}
		next, applied := billing.Merge(base, c, s.now())
		if !applied {
			return next, false, nil
		}

		ok, err := s.compareAndSet(ctx, current, next)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return next, true, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, false, storeErr("upsert", err)
		}
	}
	return nil, false, billing.ErrConcurrentUpdate
}

// compareAndSet writes next if the stored version still equals current's.
// It reports false when another writer got there first.
func (s *Store) compareAndSet(ctx context.Context, current *document, next *billing.Subscription) (bool, error) {
	if current == nil {
		doc := fromSubscription(next, 1)
		if _, err := s.coll.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return false, nil
			}
			return false, storeErr("insert", err)
		}
		return true, nil
	}

	doc := fromSubscription(next, current.Version+1)
	res, err := s.coll.ReplaceOne(ctx, bson.D{
		{Key: "_id", Value: current.UserID},
		{Key: "version", Value: current.Version},
	}, doc)
	if err != nil {
		return false, storeErr("replace", err)
	}
	return res.MatchedCount == 1, nil
}

func (s *Store) find(ctx context.Context, c billing.Change) (*document, error) {
	for _, l := range c.Lookups() {
		field := string(l.Field)
		if l.Field == billing.LookupUserID {
			field = "_id"
		}
		doc, err := s.findOne(ctx, bson.D{{Key: field, Value: l.Value}})
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storeErr("find by "+string(l.Field), err)
		}
	}
	return nil, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.D) (*document, error) {
	var doc document
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func storeErr(op string, err error) error {
	return errors.Join(billing.ErrStoreFailure, fmt.Errorf("mongostore: %s: %w", op, err))
}
