package jobshandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"wipetrace/internal/domain/emailjobs"
	"wipetrace/internal/platform/jobs"
	"wipetrace/internal/transport/http/api"
	"wipetrace/internal/transport/http/middleware"
	"wipetrace/internal/transport/http/shared"
)

type Runner interface {
	RunNow(ctx context.Context, name string) ([]emailjobs.Result, error)
	Enqueue(name string) bool
	RunTimeout() time.Duration
}

type Handler struct {
	Runner     Runner
	CronSecret string
}

func NewHandler(runner Runner, cronSecret string) *Handler {
	return &Handler{Runner: runner, CronSecret: cronSecret}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Use(middleware.CronSecret(h.CronSecret))
		r.Post("/email", h.handleEmailJob)
	})
}

type jobPayload struct {
	Job   string `json:"job"`
	Async bool   `json:"async"`
}

type jobResponse struct {
	Job       string             `json:"job"`
	Queued    bool               `json:"queued,omitempty"`
	Results   []emailjobs.Result `json:"results,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

func (h *Handler) handleEmailJob(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var payload jobPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	if payload.Job == "" {
		payload.Job = r.URL.Query().Get("job")
	}
	name := strings.ToLower(strings.TrimSpace(payload.Job))
	if !slices.Contains(emailjobs.Names, name) {
		api.Fail(w, http.StatusBadRequest, "unknown_job", "invalid job type; expected one of "+strings.Join(emailjobs.Names, ", "), reqID)
		return
	}

	if payload.Async || r.URL.Query().Get("async") == "true" {
		if !h.Runner.Enqueue(name) {
			api.Fail(w, http.StatusServiceUnavailable, "queue_full", "job queue is full", reqID)
			return
		}
		api.WriteJSON(w, http.StatusAccepted, api.Envelope{Success: true, Data: jobResponse{Job: name, Queued: true, Timestamp: time.Now().UTC()}, RequestID: reqID})
		return
	}

	shared.ExtendWriteDeadline(w, h.Runner.RunTimeout()+time.Minute)
	results, err := h.Runner.RunNow(r.Context(), name)
	switch {
	case errors.Is(err, jobs.ErrAlreadyRunning):
		api.Fail(w, http.StatusConflict, "job_running", "job is already running", reqID)
		return
	case err != nil:
		shared.Fail(w, r, err, "failed to run email job")
		return
	}
	api.Success(w, jobResponse{Job: name, Results: results, Timestamp: time.Now().UTC()}, reqID)
}
