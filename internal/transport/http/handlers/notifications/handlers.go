package notificationshandler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"wipetrace/internal/domain/notifications"
	"wipetrace/internal/transport/http/api"
	"wipetrace/internal/transport/http/middleware"
	"wipetrace/internal/transport/http/shared"
)

type Inbox interface {
	List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) (notifications.ListResult, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
}

type Handler struct {
	Service Inbox
}

func NewHandler(service Inbox) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Get("/", h.handleList)
		r.With(shared.UUIDParam("notificationID", notifications.ErrNotFound.Error())).Post("/{notificationID}/read", h.handleMarkRead)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	page := shared.ParsePage(r)
	unreadOnly := r.URL.Query().Get("unread") == "true"

	result, err := h.Service.List(r.Context(), user.UserID, unreadOnly, page.Limit, page.Offset())
	if err != nil {
		shared.Fail(w, r, err, "failed to list notifications")
		return
	}
	if result.Notifications == nil {
		result.Notifications = []notifications.Notification{}
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(result.Total))
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	notificationID := chi.URLParam(r, "notificationID")
	if err := h.Service.MarkRead(r.Context(), user.UserID, notificationID); err != nil {
		shared.Fail(w, r, err, "failed to update notification")
		return
	}
	api.Success(w, map[string]string{"status": "read"}, middleware.GetRequestID(r.Context()))
}
