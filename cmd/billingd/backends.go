package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billsync/pkg/billing"
	"github.com/dmitrymomot/billsync/pkg/billing/mongostore"
	"github.com/dmitrymomot/billsync/pkg/billing/paddle"
	"github.com/dmitrymomot/billsync/pkg/billing/pgstore"
	"github.com/dmitrymomot/billsync/pkg/billing/redislock"
	"github.com/dmitrymomot/billsync/pkg/billing/stripe"
	"github.com/dmitrymomot/billsync/pkg/httpserver"
	"github.com/dmitrymomot/billsync/pkg/logger"
	"github.com/dmitrymomot/billsync/pkg/mongo"
	"github.com/dmitrymomot/billsync/pkg/pg"
	"github.com/dmitrymomot/billsync/pkg/redis"
)

var errUnknownBackend = errors.New("unknown backend")

// backends holds the store and locker selected by configuration together
// with their readiness checks.
type backends struct {
	store  billing.Store
	locker billing.Locker
	checks []httpserver.Check

	pool    *pgxpool.Pool
	pgCfg   pg.Config
	mongo   *mongostore.Store
	closers []func()
}

func newBackends(ctx context.Context, cfg appConfig, log *slog.Logger) (*backends, error) {
	b := &backends{}
	if err := b.openStore(ctx, cfg, log); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.openLocker(ctx, cfg); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *backends) openStore(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	switch cfg.Store {
	case storeMemory:
		log.WarnContext(ctx, "Using in-memory subscription store, records are lost on restart")
		b.store = billing.NewMemoryStore()

	case storePostgres:
		if err := load(cfg, &b.pgCfg); err != nil {
			return err
		}
		pool, err := pg.Connect(ctx, b.pgCfg)
		if err != nil {
			return err
		}
		b.pool = pool
		b.closers = append(b.closers, pool.Close)
		b.checks = append(b.checks, httpserver.Check{Name: "postgres", Check: pg.Healthcheck(pool)})
		b.store = pgstore.New(pool)

	case storeMongo:
		var mcfg mongo.Config
		if err := load(cfg, &mcfg); err != nil {
			return err
		}
		client, db, err := mongo.NewWithDatabase(ctx, mcfg)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Warn("Failed to disconnect from mongodb", logger.Error(err))
			}
		})
		b.checks = append(b.checks, httpserver.Check{Name: "mongodb", Check: mongo.Healthcheck(client)})
		b.mongo = mongostore.New(db)
		b.store = b.mongo

	default:
		return fmt.Errorf("%w: store %q", errUnknownBackend, cfg.Store)
	}
	return nil
}

func (b *backends) openLocker(ctx context.Context, cfg appConfig) error {
	switch cfg.Locker {
	case lockerMemory:
		b.locker = billing.NewMemoryLocker()

	case lockerRedis:
		var rcfg redis.Config
		if err := load(cfg, &rcfg); err != nil {
			return err
		}
		client, err := redis.Connect(ctx, rcfg)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() { _ = client.Close() })
		b.checks = append(b.checks, httpserver.Check{Name: "redis", Check: redis.Healthcheck(client)})
		b.locker = redislock.New(client, cfg.Lock)

	default:
		return fmt.Errorf("%w: locker %q", errUnknownBackend, cfg.Locker)
	}
	return nil
}

// Migrate applies the schema of the selected store.
func (b *backends) Migrate(ctx context.Context, log *slog.Logger) error {
	switch {
	case b.pool != nil:
		return pg.Migrate(ctx, b.pool, pgstore.Migrations, pgstore.MigrationsDir, b.pgCfg, log)
	case b.mongo != nil:
		if err := b.mongo.EnsureIndexes(ctx); err != nil {
			return err
		}
		log.InfoContext(ctx, "MongoDB indexes ensured")
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

func newProvider(cfg appConfig) (billing.Provider, billing.Authenticator, error) {
	switch cfg.Provider {
	case providerStripe:
		p, err := stripe.NewProvider(cfg.Stripe)
		if err != nil {
			return nil, nil, err
		}
		a, err := stripe.NewAuthenticator(cfg.Stripe)
		if err != nil {
			return nil, nil, err
		}
		return p, a, nil

	case providerPaddle:
		p, err := paddle.NewProvider(cfg.Paddle)
		if err != nil {
			return nil, nil, err
		}
		a, err := paddle.NewAuthenticator(cfg.Paddle)
		if err != nil {
			return nil, nil, err
		}
		return p, a, nil

	default:
		return nil, nil, fmt.Errorf("%w: provider %q", errUnknownBackend, cfg.Provider)
	}
}
