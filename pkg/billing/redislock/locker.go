package redislock

import (
	"context"
	"errors"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/billsync/pkg/billing"
)

// ErrLockNotAcquired is returned when the key stays taken for all tries.
var ErrLockNotAcquired = errors.New("redislock: lock not acquired")

// Config tunes the redsync mutexes. Expiry must exceed the longest provider
// call made while holding the lock.
type Config struct {
	Prefix     string        `env:"BILLING_LOCK_PREFIX" envDefault:"billsync:lock:"`
	Expiry     time.Duration `env:"BILLING_LOCK_EXPIRY" envDefault:"30s"`
	Tries      int           `env:"BILLING_LOCK_TRIES" envDefault:"100"`
	RetryDelay time.Duration `env:"BILLING_LOCK_RETRY_DELAY" envDefault:"100ms"`
}

// Locker is a billing.Locker shared by every process using the same Redis.
type Locker struct {
	rs  *redsync.Redsync
	cfg Config
}

var _ billing.Locker = (*Locker)(nil)

func New(client redis.UniversalClient, cfg Config) *Locker {
	if client == nil {
		panic("redislock: redis client is required")
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 30 * time.Second
	}
	if cfg.Tries <= 0 {
		cfg.Tries = 100
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	return &Locker{rs: redsync.New(goredis.NewPool(client)), cfg: cfg}
}

// Lock blocks until key is held, the tries are exhausted or ctx is done.
// The returned unlock is safe to call more than once.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	m := l.rs.NewMutex(l.cfg.Prefix+key,
		redsync.WithExpiry(l.cfg.Expiry),
		redsync.WithTries(l.cfg.Tries),
		redsync.WithRetryDelay(l.cfg.RetryDelay),
	)
	if err := m.LockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Join(ErrLockNotAcquired, err)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// an expired lock was already released by redis
		_, _ = m.UnlockContext(context.WithoutCancel(ctx))
	}, nil
}
