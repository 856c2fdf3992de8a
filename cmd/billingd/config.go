package main

import (
	"github.com/dmitrymomot/billsync/pkg/billing"
	"github.com/dmitrymomot/billsync/pkg/billing/paddle"
	"github.com/dmitrymomot/billsync/pkg/billing/redislock"
	"github.com/dmitrymomot/billsync/pkg/billing/stripe"
	"github.com/dmitrymomot/billsync/pkg/config"
	"github.com/dmitrymomot/billsync/pkg/httpserver"
	"github.com/dmitrymomot/billsync/pkg/logger"
	"github.com/dmitrymomot/billsync/svc/billingapi"
)

// Backend selectors.
const (
	providerStripe = "stripe"
	providerPaddle = "paddle"

	storeMemory   = "memory"
	storePostgres = "postgres"
	storeMongo    = "mongo"

	lockerMemory = "memory"
	lockerRedis  = "redis"
)

// appConfig is everything billingd reads from the environment. Connection
// settings of the optional backends are loaded only when selected, since
// their URLs are required.
type appConfig struct {
	Provider string `env:"BILLING_PROVIDER" envDefault:"stripe"` // stripe or paddle
	Store    string `env:"BILLING_STORE" envDefault:"memory"`    // memory, postgres or mongo
	Locker   string `env:"BILLING_LOCKER" envDefault:"memory"`   // memory or redis

	Log     logger.Config
	HTTP    httpserver.Config
	Billing billing.Config
	Breaker billing.BreakerConfig
	API     billingapi.Config
	Stripe  stripe.Config
	Paddle  paddle.Config
	Lock    redislock.Config

	loadOpts []config.Option
}

// load parses a backend config with the options cfg was loaded with.
func load[T any](cfg appConfig, v *T) error {
	return config.Load(v, cfg.loadOpts...)
}

func loadConfig(opts ...config.Option) (appConfig, error) {
	var cfg appConfig
	if err := config.Load(&cfg, opts...); err != nil {
		return appConfig{}, err
	}
	cfg.loadOpts = opts
	return cfg, nil
}
