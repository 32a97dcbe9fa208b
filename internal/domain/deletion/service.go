package deletion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"wipetrace/internal/domain/audit"
	"wipetrace/internal/domain/companies"
	"wipetrace/internal/domain/enums"
	"wipetrace/internal/platform/metrics"
)

type CompanyReader interface {
	Get(ctx context.Context, id string) (companies.Company, error)
	RefreshSuccessRate(ctx context.Context, id string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Service struct {
	store     StoreAPI
	companies CompanyReader
	events    EventPublisher
	log       *zap.Logger
	now       func() time.Time
}

func NewService(store StoreAPI, companyReader CompanyReader, events EventPublisher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, companies: companyReader, events: events, log: log, now: time.Now}
}

// WithClock replaces the time source. Tests use it to pin temporal predicates.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Create(ctx context.Context, in CreateInput) (DeletionRequest, error) {
	if err := validateRequestor(in.Requestor); err != nil {
		return DeletionRequest{}, err
	}
	if err := s.ensureUser(ctx, in.UserID); err != nil {
		return DeletionRequest{}, err
	}
	return s.create(ctx, in)
}

// CreateBulk creates one request per company. A failure for one company is
// reported in its item and does not stop the others.
func (s *Service) CreateBulk(ctx context.Context, in BulkInput) (BulkResult, error) {
	if len(in.CompanyIDs) == 0 {
		return BulkResult{}, &enums.ValidationError{Field: "companyIds"}
	}
	if err := validateRequestor(in.Requestor); err != nil {
		return BulkResult{}, err
	}
	if err := s.ensureUser(ctx, in.UserID); err != nil {
		return BulkResult{}, err
	}

	share := roundCents(BulkPrice / float64(len(in.CompanyIDs)))
	result := BulkResult{Results: make([]BulkItem, 0, len(in.CompanyIDs))}
	for _, companyID := range in.CompanyIDs {
		cost := share
		req, err := s.create(ctx, CreateInput{
			UserID:       in.UserID,
			CompanyID:    companyID,
			Jurisdiction: in.Jurisdiction,
			Requestor:    in.Requestor,
			RequestType:  enums.RequestBulk,
			Priority:     in.Priority,
			Cost:         &cost,
		})
		if err != nil {
			s.log.Warn("bulk request item failed", zap.String("company_id", companyID), zap.Error(err))
			result.Results = append(result.Results, BulkItem{CompanyID: companyID, Error: bulkItemError(err)})
			result.Failed++
			continue
		}
		created := req
		result.Results = append(result.Results, BulkItem{CompanyID: companyID, Success: true, Request: &created})
		result.Created++
		result.TotalCost += req.Cost
	}
	result.TotalCost = roundCents(result.TotalCost)
	return result, nil
}

func (s *Service) create(ctx context.Context, in CreateInput) (DeletionRequest, error) {
	company, err := s.companies.Get(ctx, in.CompanyID)
	if err != nil {
		return DeletionRequest{}, err
	}
	if !company.Supports(in.Jurisdiction) {
		return DeletionRequest{}, fmt.Errorf("%w: %s does not support %s", ErrUnsupportedJurisdiction, company.Name, in.Jurisdiction)
	}

	requestType := in.RequestType
	if requestType == "" {
		requestType = enums.RequestIndividual
	}
	priority := in.Priority
	if priority == "" {
		priority = enums.PriorityNormal
	}
	cost := IndividualPrice
	if requestType == enums.RequestBulk {
		cost = BulkPrice
	}
	if in.Cost != nil {
		cost = *in.Cost
	}

	now := s.now()
	estimated := now.AddDate(0, 0, company.AvgResponseTime)
	req := DeletionRequest{
		UserID:              in.UserID,
		CompanyID:           company.ID,
		CompanyName:         company.Name,
		Jurisdiction:        in.Jurisdiction,
		RequestType:         requestType,
		Status:              enums.StatusPending,
		Priority:            priority,
		RequestorName:       strings.TrimSpace(in.Requestor.Name),
		RequestorEmail:      strings.TrimSpace(in.Requestor.Email),
		RequestorPhone:      strings.TrimSpace(in.Requestor.Phone),
		RequestorAddress:    strings.TrimSpace(in.Requestor.Address),
		Cost:                cost,
		Notes:               in.Notes,
		CreatedAt:           now,
		EstimatedCompletion: &estimated,
	}

	created, err := s.store.CreateRequest(ctx, req, audit.Entry{
		UserID: in.UserID,
		Action: audit.ActionRequestCreated,
		NewValues: map[string]any{
			"companyId":    company.ID,
			"jurisdiction": in.Jurisdiction,
			"requestType":  requestType,
			"priority":     priority,
			"cost":         cost,
		},
	})
	if err != nil {
		return DeletionRequest{}, err
	}

	metrics.ObserveTransition("", string(enums.StatusPending))
	s.publish(ctx, EventCreated, created, "")
	return created, nil
}

func (s *Service) Get(ctx context.Context, id string) (DeletionRequest, error) {
	return s.store.GetRequest(ctx, id)
}

// GetOwned returns the request only when userID owns it.
func (s *Service) GetOwned(ctx context.Context, id, userID string) (DeletionRequest, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return DeletionRequest{}, err
	}
	if req.UserID != userID {
		return DeletionRequest{}, ErrForbidden
	}
	return req, nil
}

func (s *Service) List(ctx context.Context, filter Filter, page, limit int) (ListResult, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	requests, total, err := s.store.ListRequests(ctx, filter, limit, (page-1)*limit)
	if err != nil {
		return ListResult{}, err
	}
	if requests == nil {
		requests = []DeletionRequest{}
	}
	return ListResult{
		Requests:   requests,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// Transition moves a request to status to. The update only applies if the
// stored status is still the one read here, otherwise ErrStateConflict.
func (s *Service) Transition(ctx context.Context, id, actorID string, to enums.RequestStatus, opts TransitionOptions) (DeletionRequest, error) {
	current, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return DeletionRequest{}, err
	}
	if !CanTransition(current.Status, to) {
		return DeletionRequest{}, fmt.Errorf("%w: %s to %s", ErrStateConflict, current.Status, to)
	}
	return s.apply(ctx, current, actorID, transitionPatch(current, to, opts, s.now()), audit.ActionRequestUpdated, nil)
}

// Cancel is only legal from PENDING or SENT.
func (s *Service) Cancel(ctx context.Context, id, userID string) (DeletionRequest, error) {
	current, err := s.GetOwned(ctx, id, userID)
	if err != nil {
		return DeletionRequest{}, err
	}
	if !current.Status.Cancellable() {
		return DeletionRequest{}, fmt.Errorf("%w: cannot cancel a %s request", ErrStateConflict, current.Status)
	}
	to := enums.StatusCancelled
	return s.apply(ctx, current, userID, Patch{Status: &to}, audit.ActionRequestUpdated, nil)
}

// MarkSent records a successful initial send: PENDING to SENT, sentAt and
// lastEmailSent set, emailsSent incremented.
func (s *Service) MarkSent(ctx context.Context, id, emailLogID string) (DeletionRequest, error) {
	current, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return DeletionRequest{}, err
	}
	if current.Status != enums.StatusPending {
		return DeletionRequest{}, fmt.Errorf("%w: request is %s, not PENDING", ErrStateConflict, current.Status)
	}
	now := s.now()
	to := enums.StatusSent
	patch := Patch{Status: &to, SentAt: &now, LastEmailSent: &now, IncrementEmailsSent: true}
	return s.apply(ctx, current, "", patch, audit.ActionEmailSent, map[string]any{"emailLogId": emailLogID})
}

// RecordFollowUp counts a follow-up email without changing status.
func (s *Service) RecordFollowUp(ctx context.Context, id, emailLogID string) (DeletionRequest, error) {
	current, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return DeletionRequest{}, err
	}
	if current.Status != enums.StatusSent {
		return DeletionRequest{}, fmt.Errorf("%w: request is %s, not SENT", ErrStateConflict, current.Status)
	}
	now := s.now()
	patch := Patch{LastEmailSent: &now, IncrementEmailsSent: true}
	return s.apply(ctx, current, "", patch, audit.ActionFollowUpSent, map[string]any{"emailLogId": emailLogID})
}

// UpdateByOwner applies the fields a user may edit directly.
func (s *Service) UpdateByOwner(ctx context.Context, id, userID string, notes *string, responseReceived *bool) (DeletionRequest, error) {
	if notes == nil && responseReceived == nil {
		return DeletionRequest{}, &enums.ValidationError{Field: "notes or responseReceived"}
	}
	current, err := s.GetOwned(ctx, id, userID)
	if err != nil {
		return DeletionRequest{}, err
	}
	return s.apply(ctx, current, userID, Patch{Notes: notes, ResponseReceived: responseReceived}, audit.ActionRequestUpdated, nil)
}

// MarkOverdue fails a SENT request that never got an answer.
func (s *Service) MarkOverdue(ctx context.Context, id string) (DeletionRequest, error) {
	note := OverdueNote
	return s.Transition(ctx, id, "", enums.StatusFailed, TransitionOptions{InternalNotes: &note})
}

func (s *Service) apply(ctx context.Context, current DeletionRequest, actorID string, patch Patch, action string, extra map[string]any) (DeletionRequest, error) {
	expected := current.Status
	if patch.Status == nil {
		expected = ""
	}
	newValues := patchSnapshot(patch)
	for k, v := range extra {
		newValues[k] = v
	}

	updated, err := s.store.UpdateRequest(ctx, current.ID, expected, patch, audit.Entry{
		UserID:    actorID,
		Action:    action,
		OldValues: snapshot(current),
		NewValues: newValues,
	})
	if err != nil {
		return DeletionRequest{}, err
	}

	if patch.Status != nil {
		metrics.ObserveTransition(string(current.Status), string(*patch.Status))
		s.publish(ctx, EventStatusChanged, updated, current.Status)
		switch *patch.Status {
		case enums.StatusCompleted, enums.StatusFailed, enums.StatusRejected:
			if err := s.companies.RefreshSuccessRate(ctx, updated.CompanyID); err != nil {
				s.log.Warn("refresh company success rate failed", zap.String("company_id", updated.CompanyID), zap.Error(err))
			}
		}
	}
	return updated, nil
}

func (s *Service) PendingUnsent(ctx context.Context, limit int) ([]DeletionRequest, error) {
	return s.store.PendingUnsent(ctx, limit)
}

// FollowUpCandidates returns SENT requests with no response, fewer than three
// emails sent, and a week since both the first and the latest email.
func (s *Service) FollowUpCandidates(ctx context.Context, limit int) ([]DeletionRequest, error) {
	cutoff := s.now().Add(-FollowUpAfter)
	found, err := s.store.FollowUpCandidates(ctx, cutoff, MaxAutoEmailsSent, limit)
	if err != nil {
		return nil, err
	}
	out := found[:0]
	for _, r := range found {
		if IsFollowUpEligible(r, cutoff) {
			out = append(out, r)
		}
	}
	return out, nil
}

func IsFollowUpEligible(r DeletionRequest, cutoff time.Time) bool {
	return r.Status == enums.StatusSent && r.SentAt != nil && !r.SentAt.After(cutoff) &&
		(r.LastEmailSent == nil || !r.LastEmailSent.After(cutoff)) &&
		!r.ResponseReceived && r.EmailsSent < MaxAutoEmailsSent
}

func (s *Service) OverdueCandidates(ctx context.Context, limit int) ([]DeletionRequest, error) {
	cutoff := s.now().Add(-OverdueAfter)
	found, err := s.store.OverdueCandidates(ctx, cutoff, limit)
	if err != nil {
		return nil, err
	}
	out := found[:0]
	for _, r := range found {
		if r.Status == enums.StatusSent && r.SentAt != nil && !r.SentAt.After(cutoff) && !r.ResponseReceived {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Service) ActiveUserSummaries(ctx context.Context) ([]UserSummary, error) {
	return s.store.ActiveUserSummaries(ctx)
}

// Statistics rolls up counts for userID, or across all users when empty.
func (s *Service) Statistics(ctx context.Context, userID string) (Statistics, error) {
	counts, totalCost, err := s.store.StatusCounts(ctx, userID)
	if err != nil {
		return Statistics{}, err
	}
	stats := Statistics{
		Pending:    counts[enums.StatusPending],
		Sent:       counts[enums.StatusSent],
		InProgress: counts[enums.StatusInProgress],
		Completed:  counts[enums.StatusCompleted],
		Failed:     counts[enums.StatusFailed] + counts[enums.StatusRejected],
		TotalCost:  roundCents(totalCost),
	}
	for _, n := range counts {
		stats.Total += n
	}
	if stats.Total > 0 {
		stats.SuccessRate = int(math.Round(float64(stats.Completed) / float64(stats.Total) * 100))
	}
	return stats, nil
}

func (s *Service) CountByStatus(ctx context.Context, userID string) (map[enums.RequestStatus]int, error) {
	counts, _, err := s.store.StatusCounts(ctx, userID)
	return counts, err
}

// MonthlyTrends covers the last months calendar months including the
// current one.
func (s *Service) MonthlyTrends(ctx context.Context, userID string, months int) ([]MonthlyTrend, error) {
	if months < 1 {
		months = 12
	}
	now := s.now()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(months - 1), 0)
	return s.store.MonthlyTrends(ctx, userID, since)
}

func (s *Service) ensureUser(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUserNotFound
	}
	ok, err := s.store.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}

func (s *Service) publish(ctx context.Context, key string, req DeletionRequest, from enums.RequestStatus) {
	if s.events == nil {
		return
	}
	payload := map[string]any{
		"requestId":    req.ID,
		"userId":       req.UserID,
		"companyId":    req.CompanyID,
		"jurisdiction": req.Jurisdiction,
		"status":       req.Status,
		"occurredAt":   s.now().UTC(),
	}
	if from != "" {
		payload["previousStatus"] = from
	}
	if err := s.events.Publish(ctx, key, payload); err != nil {
		s.log.Warn("publish deletion event failed", zap.String("event", key), zap.String("request_id", req.ID), zap.Error(err))
	}
}

func validateRequestor(r Requestor) error {
	if strings.TrimSpace(r.Name) == "" {
		return &enums.ValidationError{Field: "requestorName"}
	}
	if strings.TrimSpace(r.Email) == "" {
		return &enums.ValidationError{Field: "requestorEmail"}
	}
	return nil
}

func snapshot(r DeletionRequest) map[string]any {
	return map[string]any{
		"status":           r.Status,
		"emailsSent":       r.EmailsSent,
		"responseReceived": r.ResponseReceived,
		"notes":            r.Notes,
		"sentAt":           r.SentAt,
		"lastEmailSent":    r.LastEmailSent,
	}
}

func patchSnapshot(p Patch) map[string]any {
	out := map[string]any{}
	if p.Status != nil {
		out["status"] = *p.Status
	}
	if p.Notes != nil {
		out["notes"] = *p.Notes
	}
	if p.InternalNotes != nil {
		out["internalNotes"] = *p.InternalNotes
	}
	if p.ResponseReceived != nil {
		out["responseReceived"] = *p.ResponseReceived
	}
	if p.SentAt != nil {
		out["sentAt"] = *p.SentAt
	}
	if p.AcknowledgedAt != nil {
		out["acknowledgedAt"] = *p.AcknowledgedAt
	}
	if p.CompletedAt != nil {
		out["completedAt"] = *p.CompletedAt
	}
	if p.LastEmailSent != nil {
		out["lastEmailSent"] = *p.LastEmailSent
	}
	if p.IncrementEmailsSent {
		out["emailsSentIncrement"] = 1
	}
	return out
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// bulkItemError is the message a failed bulk item reports to the caller.
// Only domain errors are shown; anything else was logged above.
func bulkItemError(err error) string {
	var verr *enums.ValidationError
	if errors.Is(err, ErrUnsupportedJurisdiction) || IsNotFound(err) || errors.As(err, &verr) {
		return err.Error()
	}
	return "failed to create deletion request"
}

// IsNotFound reports whether err means the request, its user or its company
// does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUserNotFound) || errors.Is(err, companies.ErrNotFound)
}
