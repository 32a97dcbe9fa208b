package shared

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"wipetrace/internal/requestctx"
	"wipetrace/internal/transport/http/api"
)

// IsUUID reports whether id can name a row. Every primary key is a uuid.
func IsUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// UUIDParam answers 404 with message when the URL parameter param is not a
// uuid, so malformed ids never reach the database.
func UUIDParam(param, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsUUID(chi.URLParam(r, param)) {
				api.Fail(w, http.StatusNotFound, "not_found", message, requestctx.GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
