package deletionhandler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"wipetrace/internal/domain/audit"
	"wipetrace/internal/domain/deletion"
	"wipetrace/internal/domain/dispatch"
	"wipetrace/internal/domain/emaillog"
	"wipetrace/internal/domain/enums"
	"wipetrace/internal/platform/logger"
	"wipetrace/internal/transport/http/api"
	"wipetrace/internal/transport/http/middleware"
	"wipetrace/internal/transport/http/shared"
)

const recentAuditEntries = 10

type RequestService interface {
	Create(ctx context.Context, in deletion.CreateInput) (deletion.DeletionRequest, error)
	CreateBulk(ctx context.Context, in deletion.BulkInput) (deletion.BulkResult, error)
	GetOwned(ctx context.Context, id, userID string) (deletion.DeletionRequest, error)
	List(ctx context.Context, filter deletion.Filter, page, limit int) (deletion.ListResult, error)
	Cancel(ctx context.Context, id, userID string) (deletion.DeletionRequest, error)
	UpdateByOwner(ctx context.Context, id, userID string, notes *string, responseReceived *bool) (deletion.DeletionRequest, error)
	Statistics(ctx context.Context, userID string) (deletion.Statistics, error)
	CountByStatus(ctx context.Context, userID string) (map[enums.RequestStatus]int, error)
	MonthlyTrends(ctx context.Context, userID string, months int) ([]deletion.MonthlyTrend, error)
}

type Mailer interface {
	SendInitial(ctx context.Context, requestID string) (dispatch.Result, error)
	SendFollowUp(ctx context.Context, requestID string) (dispatch.Result, error)
	SendBulk(ctx context.Context, requestIDs []string) (dispatch.BulkResult, error)
	BulkBudget(n int) time.Duration
	Preview(ctx context.Context, requestID string, tt enums.TemplateType) (dispatch.Preview, error)
}

type EmailLogReader interface {
	ListForRequest(ctx context.Context, deletionRequestID string) ([]emaillog.EmailLog, error)
}

type AuditReader interface {
	ListForRequest(ctx context.Context, deletionRequestID string, limit int) ([]audit.Entry, error)
}

type Handler struct {
	Requests RequestService
	Mailer   Mailer
	Logs     EmailLogReader
	Audit    AuditReader
}

func NewHandler(requests RequestService, mailer Mailer, logs EmailLogReader, auditLog AuditReader) *Handler {
	return &Handler{Requests: requests, Mailer: mailer, Logs: logs, Audit: auditLog}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/deletion-requests", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/stats", h.handleStats)
		r.Post("/send-bulk", h.handleSendBulk)
		r.Route("/{requestID}", func(r chi.Router) {
			r.Use(shared.UUIDParam("requestID", deletion.ErrNotFound.Error()))
			r.Get("/", h.handleGet)
			r.Put("/", h.handleUpdate)
			r.Delete("/", h.handleCancel)
			r.Post("/send-email", h.handleSendEmail)
			r.Post("/follow-up", h.handleFollowUp)
			r.Get("/email", h.handlePreview)
		})
	})
}

type createPayload struct {
	CompanyID        string   `json:"companyId" validate:"omitempty,uuid"`
	CompanyIDs       []string `json:"companyIds" validate:"omitempty,max=100,dive,required,uuid"`
	Jurisdiction     string   `json:"jurisdiction" validate:"required"`
	RequestorName    string   `json:"requestorName" validate:"required,max=200"`
	RequestorEmail   string   `json:"requestorEmail" validate:"required,email,max=320"`
	RequestorPhone   string   `json:"requestorPhone" validate:"max=50"`
	RequestorAddress string   `json:"requestorAddress" validate:"max=500"`
	RequestType      string   `json:"requestType"`
	Priority         string   `json:"priority"`
	Cost             *float64 `json:"cost" validate:"omitempty,gte=0"`
	Notes            string   `json:"notes" validate:"max=2000"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload createPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Struct(r.Context(), payload)
	jurisdiction, err := enums.ParseJurisdiction(payload.Jurisdiction)
	if payload.Jurisdiction != "" {
		v.Err("jurisdiction", err)
	}
	requestType, err := enums.ParseOptional("requestType", payload.RequestType, enums.RequestTypes, enums.RequestIndividual)
	v.Err("requestType", err)
	priority, err := enums.ParseOptional("priority", payload.Priority, enums.Priorities, enums.PriorityNormal)
	v.Err("priority", err)

	bulk := requestType == enums.RequestBulk && len(payload.CompanyIDs) > 0
	switch {
	case requestType == enums.RequestBulk && len(payload.CompanyIDs) == 0 && payload.CompanyID == "":
		v.Add("companyIds", "is required")
	case !bulk && strings.TrimSpace(payload.CompanyID) == "":
		v.Add("companyId", "is required")
	}
	if v.Reject(w, reqID) {
		return
	}

	requestor := deletion.Requestor{
		Name:    strings.TrimSpace(payload.RequestorName),
		Email:   strings.TrimSpace(payload.RequestorEmail),
		Phone:   strings.TrimSpace(payload.RequestorPhone),
		Address: strings.TrimSpace(payload.RequestorAddress),
	}

	if bulk {
		result, err := h.Requests.CreateBulk(r.Context(), deletion.BulkInput{
			UserID:       user.UserID,
			CompanyIDs:   payload.CompanyIDs,
			Jurisdiction: jurisdiction,
			Requestor:    requestor,
			Priority:     priority,
		})
		if err != nil {
			shared.Fail(w, r, err, "failed to create deletion requests")
			return
		}
		api.Created(w, result, reqID)
		return
	}

	created, err := h.Requests.Create(r.Context(), deletion.CreateInput{
		UserID:       user.UserID,
		CompanyID:    strings.TrimSpace(payload.CompanyID),
		Jurisdiction: jurisdiction,
		Requestor:    requestor,
		RequestType:  requestType,
		Priority:     priority,
		Cost:         payload.Cost,
		Notes:        payload.Notes,
	})
	if err != nil {
		shared.Fail(w, r, err, "failed to create deletion request")
		return
	}
	api.Created(w, created, reqID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	filter, v := parseFilter(r)
	if v.Reject(w, reqID) {
		return
	}
	filter.UserID = user.UserID

	page := shared.ParsePage(r)
	result, err := h.Requests.List(r.Context(), filter, page.Page, page.Limit)
	if err != nil {
		shared.Fail(w, r, err, "failed to list deletion requests")
		return
	}
	api.Success(w, result, reqID)
}

func parseFilter(r *http.Request) (deletion.Filter, *shared.Validator) {
	q := r.URL.Query()
	v := shared.NewValidator()
	var filter deletion.Filter

	if raw := q.Get("status"); raw != "" {
		status, err := enums.ParseRequestStatus(raw)
		if !v.Err("status", err) {
			filter.Status = &status
		}
	}
	if raw := q.Get("jurisdiction"); raw != "" {
		j, err := enums.ParseJurisdiction(raw)
		if !v.Err("jurisdiction", err) {
			filter.Jurisdiction = &j
		}
	}
	if raw := q.Get("requestType"); raw != "" {
		rt, err := enums.ParseRequestType(raw)
		if !v.Err("requestType", err) {
			filter.RequestType = &rt
		}
	}
	if raw := strings.TrimSpace(q.Get("companyId")); raw != "" {
		if shared.IsUUID(raw) {
			filter.CompanyID = &raw
		} else {
			v.Add("companyId", "must be a valid id")
		}
	}
	if raw := q.Get("dateFrom"); raw != "" {
		from, err := shared.ParseDate(raw)
		if err != nil {
			v.Add("dateFrom", "must be a date (YYYY-MM-DD or RFC3339)")
		} else {
			filter.DateFrom = &from
		}
	}
	if raw := q.Get("dateTo"); raw != "" {
		to, err := shared.ParseDateEnd(raw)
		if err != nil {
			v.Add("dateTo", "must be a date (YYYY-MM-DD or RFC3339)")
		} else {
			filter.DateTo = &to
		}
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		v.Add("dateTo", "must not be before dateFrom")
	}
	return filter, v
}

type statsResponse struct {
	User          deletion.Statistics         `json:"user"`
	ByStatus      map[enums.RequestStatus]int `json:"byStatus"`
	MonthlyTrends []deletion.MonthlyTrend     `json:"monthlyTrends"`
	Global        *deletion.Statistics        `json:"global,omitempty"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	if r.URL.Query().Get("global") == "true" && !user.IsAdmin() {
		api.Fail(w, http.StatusForbidden, "forbidden", "admin access required", reqID)
		return
	}

	stats, err := h.Requests.Statistics(r.Context(), user.UserID)
	if err != nil {
		shared.Fail(w, r, err, "failed to load statistics")
		return
	}
	out := statsResponse{User: stats}

	// The breakdowns are best effort; the headline numbers are what callers need.
	if counts, err := h.Requests.CountByStatus(r.Context(), user.UserID); err != nil {
		logger.From(r.Context()).Warn("status counts failed", zap.Error(err))
	} else {
		out.ByStatus = counts
	}
	months := 6
	if raw := r.URL.Query().Get("months"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 24 {
			months = n
		}
	}
	if trends, err := h.Requests.MonthlyTrends(r.Context(), user.UserID, months); err != nil {
		logger.From(r.Context()).Warn("monthly trends failed", zap.Error(err))
	} else {
		out.MonthlyTrends = trends
	}

	if r.URL.Query().Get("global") == "true" {
		global, err := h.Requests.Statistics(r.Context(), "")
		if err != nil {
			shared.Fail(w, r, err, "failed to load statistics")
			return
		}
		out.Global = &global
	}
	api.Success(w, out, reqID)
}

type detailResponse struct {
	deletion.DeletionRequest
	EmailLogs []emaillog.EmailLog `json:"emailLogs"`
	AuditLogs []audit.Entry       `json:"auditLogs"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	id := chi.URLParam(r, "requestID")

	req, err := h.Requests.GetOwned(r.Context(), id, user.UserID)
	if err != nil {
		shared.Fail(w, r, err, "failed to load deletion request")
		return
	}
	out := detailResponse{DeletionRequest: req, EmailLogs: []emaillog.EmailLog{}, AuditLogs: []audit.Entry{}}
	if logs, err := h.Logs.ListForRequest(r.Context(), id); err != nil {
		logger.From(r.Context()).Warn("email log lookup failed", zap.String("deletion_request_id", id), zap.Error(err))
	} else if logs != nil {
		out.EmailLogs = logs
	}
	if entries, err := h.Audit.ListForRequest(r.Context(), id, recentAuditEntries); err != nil {
		logger.From(r.Context()).Warn("audit lookup failed", zap.String("deletion_request_id", id), zap.Error(err))
	} else if entries != nil {
		out.AuditLogs = entries
	}
	api.Success(w, out, reqID)
}

type updatePayload struct {
	Notes            *string `json:"notes" validate:"omitempty,max=2000"`
	ResponseReceived *bool   `json:"responseReceived"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload updatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	if payload.Notes == nil && payload.ResponseReceived == nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "no valid fields to update", reqID)
		return
	}
	v := shared.NewValidator()
	v.Struct(r.Context(), payload)
	if v.Reject(w, reqID) {
		return
	}

	updated, err := h.Requests.UpdateByOwner(r.Context(), chi.URLParam(r, "requestID"), user.UserID, payload.Notes, payload.ResponseReceived)
	if err != nil {
		shared.Fail(w, r, err, "failed to update deletion request")
		return
	}
	api.Success(w, updated, reqID)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	cancelled, err := h.Requests.Cancel(r.Context(), chi.URLParam(r, "requestID"), user.UserID)
	if err != nil {
		shared.Fail(w, r, err, "failed to cancel deletion request")
		return
	}
	api.Success(w, cancelled, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, h.Mailer.SendInitial, "failed to send email")
}

func (h *Handler) handleFollowUp(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, h.Mailer.SendFollowUp, "failed to send follow-up email")
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (dispatch.Result, error), fallback string) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	id := chi.URLParam(r, "requestID")

	if _, err := h.Requests.GetOwned(r.Context(), id, user.UserID); err != nil {
		shared.Fail(w, r, err, fallback)
		return
	}
	result, err := fn(r.Context(), id)
	if err != nil {
		shared.Fail(w, r, err, fallback)
		return
	}
	if !result.Success {
		api.FailWithDetails(w, http.StatusBadGateway, "email_send_failed", fallback+": "+result.Error, result, reqID)
		return
	}
	api.Success(w, result, reqID)
}

type sendBulkPayload struct {
	RequestIDs []string `json:"requestIds" validate:"required,min=1,max=100,dive,required,uuid"`
}

func (h *Handler) handleSendBulk(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload sendBulkPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	v := shared.NewValidator()
	v.Struct(r.Context(), payload)
	if v.Reject(w, reqID) {
		return
	}

	for _, id := range payload.RequestIDs {
		req, err := h.Requests.GetOwned(r.Context(), id, user.UserID)
		if err != nil && !errors.Is(err, deletion.ErrNotFound) && !errors.Is(err, deletion.ErrForbidden) {
			shared.Fail(w, r, err, "failed to send bulk emails")
			return
		}
		if err != nil || req.Status != enums.StatusPending {
			api.Fail(w, http.StatusBadRequest, "invalid_requests", "some requests are invalid or not in pending status", reqID)
			return
		}
	}

	shared.ExtendWriteDeadline(w, h.Mailer.BulkBudget(len(payload.RequestIDs))+time.Minute)
	result, err := h.Mailer.SendBulk(r.Context(), payload.RequestIDs)
	if err != nil {
		shared.Fail(w, r, err, "failed to send bulk emails")
		return
	}
	api.Success(w, result, reqID)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	id := chi.URLParam(r, "requestID")

	tt, err := enums.ParseOptional("type", r.URL.Query().Get("type"), enums.TemplateTypes, enums.TemplateInitialRequest)
	if err != nil {
		shared.Fail(w, r, err, "failed to preview email")
		return
	}
	if _, err := h.Requests.GetOwned(r.Context(), id, user.UserID); err != nil {
		shared.Fail(w, r, err, "failed to preview email")
		return
	}
	preview, err := h.Mailer.Preview(r.Context(), id, tt)
	if err != nil {
		shared.Fail(w, r, err, "failed to preview email")
		return
	}
	api.Success(w, preview, reqID)
}
