package shared

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"wipetrace/internal/domain/companies"
	"wipetrace/internal/domain/deletion"
	"wipetrace/internal/domain/dispatch"
	"wipetrace/internal/domain/emaillog"
	"wipetrace/internal/domain/enums"
	"wipetrace/internal/domain/notifications"
	"wipetrace/internal/domain/templates"
	"wipetrace/internal/platform/logger"
	"wipetrace/internal/requestctx"
	"wipetrace/internal/transport/http/api"
)

// Fail maps a domain error to its HTTP status. Errors with no mapping become
// a 500 carrying only fallback; the real error is logged.
func Fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	requestID := requestctx.GetRequestID(r.Context())

	var verr *enums.ValidationError
	switch {
	case errors.As(err, &verr):
		FailValidation(w, requestID, []ValidationIssue{{Field: verr.Field, Reason: verr.Error()}})
	case errors.Is(err, deletion.ErrNotFound),
		errors.Is(err, deletion.ErrUserNotFound),
		errors.Is(err, companies.ErrNotFound),
		errors.Is(err, templates.ErrNotFound),
		errors.Is(err, emaillog.ErrNotFound),
		errors.Is(err, notifications.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.Is(err, deletion.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "you do not have access to this request", requestID)
	case errors.Is(err, deletion.ErrStateConflict):
		api.Fail(w, http.StatusBadRequest, "state_conflict", err.Error(), requestID)
	case errors.Is(err, deletion.ErrUnsupportedJurisdiction):
		api.Fail(w, http.StatusBadRequest, "unsupported_jurisdiction", err.Error(), requestID)
	case errors.Is(err, dispatch.ErrMissingRecipient):
		api.Fail(w, http.StatusBadRequest, "missing_recipient", err.Error(), requestID)
	case errors.Is(err, dispatch.ErrFollowUpTooSoon):
		api.Fail(w, http.StatusBadRequest, "follow_up_too_soon", err.Error(), requestID)
	default:
		logger.From(r.Context()).Error(fallback, zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "internal_error", fallback, requestID)
	}
}

func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	api.Fail(w, http.StatusBadRequest, "bad_request", message, requestctx.GetRequestID(r.Context()))
}
