// Package mongo connects mongo-driver/v2 clients with retry and exposes a
// readiness probe.
package mongo
