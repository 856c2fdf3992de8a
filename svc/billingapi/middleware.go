package billingapi

import (
	"net/http"
	"strings"

	"github.com/dmitrymomot/billsync/pkg/billing"
)

// Default identity headers set by an authenticating gateway.
const (
	DefaultUserIDHeader    = "X-User-ID"
	DefaultUserEmailHeader = "X-User-Email"
	DefaultUserNameHeader  = "X-User-Name"
)

// TrustedHeaders reads the user from headers injected by an upstream
// authenticating proxy. Mount it only behind such a proxy.
func TrustedHeaders(idHeader, emailHeader, nameHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(idHeader))
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}
			user := billing.User{
				ID:    id,
				Email: strings.TrimSpace(r.Header.Get(emailHeader)),
				Name:  strings.TrimSpace(r.Header.Get(nameHeader)),
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireUser answers 401 when no user is in the request context.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
