package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyAuth accepts the key in X-API-Key or as a bearer token. Missing or
// wrong keys get 403.
func APIKeyAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-API-Key")
			if got == "" {
				const prefix = "Bearer "
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, prefix) {
					got = auth[len(prefix):]
				}
			}
			if got == "" {
				httpError(w, r, http.StatusForbidden, "forbidden", "missing X-API-Key header")
				return
			}
			if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				httpError(w, r, http.StatusForbidden, "forbidden", "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
