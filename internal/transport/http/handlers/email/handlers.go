package emailhandler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"wipetrace/internal/domain/deletion"
	"wipetrace/internal/domain/emaillog"
	"wipetrace/internal/transport/http/api"
	"wipetrace/internal/transport/http/middleware"
	"wipetrace/internal/transport/http/shared"
)

type LogService interface {
	ApplyEvent(ctx context.Context, messageID string, event emaillog.EventType, at time.Time) (int, error)
	Statistics(ctx context.Context, deletionRequestID string) (emaillog.Statistics, error)
}

type OwnershipChecker interface {
	GetOwned(ctx context.Context, id, userID string) (deletion.DeletionRequest, error)
}

type Handler struct {
	Logs          LogService
	Requests      OwnershipChecker
	WebhookSecret string
}

func NewHandler(logs LogService, requests OwnershipChecker, webhookSecret string) *Handler {
	return &Handler{Logs: logs, Requests: requests, WebhookSecret: webhookSecret}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/email", h.handleWebhook)
	r.With(middleware.RequireUser).Get("/email/stats", h.handleStats)
}

// handleStats scopes to one request for its owner. Unscoped totals span every
// user and are admin only.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	requestID := strings.TrimSpace(r.URL.Query().Get("deletionRequestId"))
	if requestID != "" && !shared.IsUUID(requestID) {
		api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "invalid query parameters",
			map[string]string{"deletionRequestId": "must be a valid id"}, reqID)
		return
	}
	switch {
	case requestID == "" && !user.IsAdmin():
		api.Fail(w, http.StatusForbidden, "forbidden", "admin access required", reqID)
		return
	case requestID != "" && !user.IsAdmin():
		if _, err := h.Requests.GetOwned(r.Context(), requestID, user.UserID); err != nil {
			shared.Fail(w, r, err, "failed to load email statistics")
			return
		}
	}

	stats, err := h.Logs.Statistics(r.Context(), requestID)
	if err != nil {
		shared.Fail(w, r, err, "failed to load email statistics")
		return
	}
	api.Success(w, stats, reqID)
}
