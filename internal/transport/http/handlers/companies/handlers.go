package companieshandler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"wipetrace/internal/domain/companies"
	"wipetrace/internal/domain/enums"
	"wipetrace/internal/transport/http/api"
	"wipetrace/internal/transport/http/middleware"
	"wipetrace/internal/transport/http/shared"
)

type Directory interface {
	Get(ctx context.Context, id string) (companies.Company, error)
	List(ctx context.Context, filter companies.Filter, limit, offset int) ([]companies.Company, int, error)
	Search(ctx context.Context, query string, limit int) ([]companies.Company, error)
	Statistics(ctx context.Context) (companies.Statistics, error)
}

type Handler struct {
	Service Directory
}

func NewHandler(service Directory) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/companies", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/search", h.handleSearch)
		r.Get("/stats", h.handleStats)
		r.With(shared.UUIDParam("companyID", companies.ErrNotFound.Error())).Get("/{companyID}", h.handleGet)
	})
}

type listResponse struct {
	Companies  []companies.Company `json:"companies"`
	Total      int                 `json:"total"`
	Page       int                 `json:"page"`
	Limit      int                 `json:"limit"`
	TotalPages int                 `json:"totalPages"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	q := r.URL.Query()
	v := shared.NewValidator()
	filter := companies.Filter{Search: strings.TrimSpace(q.Get("search"))}

	if raw := q.Get("category"); raw != "" {
		c, err := enums.ParseCompanyCategory(raw)
		if !v.Err("category", err) {
			filter.Category = &c
		}
	}
	if raw := q.Get("jurisdiction"); raw != "" {
		j, err := enums.ParseJurisdiction(raw)
		if !v.Err("jurisdiction", err) {
			filter.Jurisdiction = &j
		}
	}
	if raw := q.Get("difficulty"); raw != "" {
		d, err := enums.ParseDifficulty(raw)
		if !v.Err("difficulty", err) {
			filter.Difficulty = &d
		}
	}
	filter.IsActive = parseBool(v, "isActive", q.Get("isActive"))
	filter.IsVerified = parseBool(v, "isVerified", q.Get("isVerified"))
	if v.Reject(w, reqID) {
		return
	}

	page := shared.ParsePage(r)
	items, total, err := h.Service.List(r.Context(), filter, page.Limit, page.Offset())
	if err != nil {
		shared.Fail(w, r, err, "failed to list companies")
		return
	}
	if items == nil {
		items = []companies.Company{}
	}
	api.Success(w, listResponse{
		Companies:  items,
		Total:      total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: shared.TotalPages(total, page.Limit),
	}, reqID)
}

func parseBool(v *shared.Validator, field, raw string) *bool {
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		v.Add(field, "must be true or false")
		return nil
	}
	return &b
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		shared.BadRequest(w, r, "search query is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.Service.Search(r.Context(), query, limit)
	if err != nil {
		shared.Fail(w, r, err, "failed to search companies")
		return
	}
	if items == nil {
		items = []companies.Company{}
	}
	api.Success(w, items, reqID)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Statistics(r.Context())
	if err != nil {
		shared.Fail(w, r, err, "failed to load company statistics")
		return
	}
	api.Success(w, stats, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	company, err := h.Service.Get(r.Context(), chi.URLParam(r, "companyID"))
	if err != nil {
		shared.Fail(w, r, err, "failed to load company")
		return
	}
	api.Success(w, company, middleware.GetRequestID(r.Context()))
}
