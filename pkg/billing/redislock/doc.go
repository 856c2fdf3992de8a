// Package redislock implements billing.Locker with redsync mutexes on
// go-redis/v9, serializing customer creation across processes.
package redislock
