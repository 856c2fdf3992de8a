// Package redis connects go-redis/v9 clients with retry and exposes a
// readiness probe. The billing lock in pkg/billing/redislock runs on top of it.
package redis
