package templateshandler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"wipetrace/internal/domain/enums"
	"wipetrace/internal/domain/templates"
	"wipetrace/internal/transport/http/api"
	"wipetrace/internal/transport/http/middleware"
	"wipetrace/internal/transport/http/shared"
)

type Admin interface {
	List(ctx context.Context, filter templates.Filter) ([]templates.Template, error)
	Upsert(ctx context.Context, in templates.UpsertInput) (templates.Template, error)
	Deactivate(ctx context.Context, id string) error
}

type Handler struct {
	Service Admin
}

func NewHandler(service Admin) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/email-templates", func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Get("/", h.handleList)
		r.Put("/", h.handleUpsert)
		r.With(shared.UUIDParam("templateID", templates.ErrNotFound.Error())).Delete("/{templateID}", h.handleDeactivate)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	q := r.URL.Query()
	v := shared.NewValidator()
	var filter templates.Filter

	if raw := q.Get("jurisdiction"); raw != "" {
		j, err := enums.ParseJurisdiction(raw)
		if !v.Err("jurisdiction", err) {
			filter.Jurisdiction = &j
		}
	}
	if raw := q.Get("templateType"); raw != "" {
		tt, err := enums.ParseTemplateType(raw)
		if !v.Err("templateType", err) {
			filter.TemplateType = &tt
		}
	}
	if raw := strings.TrimSpace(q.Get("companyId")); raw != "" {
		if shared.IsUUID(raw) {
			filter.CompanyID = &raw
		} else {
			v.Add("companyId", "must be a valid id")
		}
	}
	if raw := q.Get("isActive"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			v.Add("isActive", "must be true or false")
		} else {
			filter.IsActive = &active
		}
	}
	if v.Reject(w, reqID) {
		return
	}

	items, err := h.Service.List(r.Context(), filter)
	if err != nil {
		shared.Fail(w, r, err, "failed to list templates")
		return
	}
	if items == nil {
		items = []templates.Template{}
	}
	api.Success(w, items, reqID)
}

type upsertPayload struct {
	CompanyID    string `json:"companyId" validate:"omitempty,uuid"`
	Jurisdiction string `json:"jurisdiction" validate:"required"`
	TemplateType string `json:"templateType" validate:"required"`
	Subject      string `json:"subject" validate:"required,max=300"`
	Body         string `json:"body" validate:"required"`
	PlainText    string `json:"plainText"`
	IsDefault    bool   `json:"isDefault"`
}

func (h *Handler) handleUpsert(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var payload upsertPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	v := shared.NewValidator()
	v.Struct(r.Context(), payload)
	j, err := enums.ParseJurisdiction(payload.Jurisdiction)
	if payload.Jurisdiction != "" {
		v.Err("jurisdiction", err)
	}
	tt, err := enums.ParseTemplateType(payload.TemplateType)
	if payload.TemplateType != "" {
		v.Err("templateType", err)
	}
	if v.Reject(w, reqID) {
		return
	}

	saved, err := h.Service.Upsert(r.Context(), templates.UpsertInput{
		CompanyID:    strings.TrimSpace(payload.CompanyID),
		Jurisdiction: j,
		TemplateType: tt,
		Subject:      payload.Subject,
		Body:         payload.Body,
		PlainText:    payload.PlainText,
		IsDefault:    payload.IsDefault,
	})
	if err != nil {
		shared.Fail(w, r, err, "failed to save template")
		return
	}
	api.Success(w, saved, reqID)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Deactivate(r.Context(), chi.URLParam(r, "templateID")); err != nil {
		shared.Fail(w, r, err, "failed to deactivate template")
		return
	}
	api.Success(w, map[string]string{"status": "deactivated"}, middleware.GetRequestID(r.Context()))
}
