// Package httpserver runs an http.Server bound to a context and provides
// liveness and readiness handlers.
package httpserver
