package middleware

import (
	"crypto/subtle"
	"net/http"

	"wipetrace/internal/transport/http/api"
)

// CronSecret guards scheduler-triggered endpoints. An empty secret denies
// every caller.
func CronSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if secret == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "invalid cron secret", GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
