package deletion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wipetrace/internal/domain/audit"
	"wipetrace/internal/domain/companies"
	"wipetrace/internal/domain/enums"
)

type fakeStore struct {
	mu       sync.Mutex
	users    map[string]bool
	requests map[string]DeletionRequest
	audits   []audit.Entry
	seq      int
}

func newFakeStore(users ...string) *fakeStore {
	f := &fakeStore{users: map[string]bool{}, requests: map[string]DeletionRequest{}}
	for _, u := range users {
		f.users[u] = true
	}
	return f
}

func (f *fakeStore) UserExists(_ context.Context, userID string) (bool, error) {
	return f.users[userID], nil
}

func (f *fakeStore) CreateRequest(_ context.Context, req DeletionRequest, entry audit.Entry) (DeletionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	req.ID = fmt.Sprintf("dr-%d", f.seq)
	req.UpdatedAt = req.CreatedAt
	f.requests[req.ID] = req
	entry.DeletionRequestID = req.ID
	f.audits = append(f.audits, entry)
	return req, nil
}

func (f *fakeStore) GetRequest(_ context.Context, id string) (DeletionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return DeletionRequest{}, ErrNotFound
	}
	return req, nil
}

func (f *fakeStore) UpdateRequest(_ context.Context, id string, expected enums.RequestStatus, p Patch, entry audit.Entry) (DeletionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return DeletionRequest{}, ErrNotFound
	}
	if expected != "" && req.Status != expected {
		return DeletionRequest{}, ErrStateConflict
	}
	if p.Status != nil {
		req.Status = *p.Status
	}
	if p.Notes != nil {
		req.Notes = *p.Notes
	}
	if p.InternalNotes != nil {
		req.InternalNotes = *p.InternalNotes
	}
	if p.ResponseReceived != nil {
		req.ResponseReceived = *p.ResponseReceived
	}
	if p.SentAt != nil {
		req.SentAt = p.SentAt
	}
	if p.AcknowledgedAt != nil {
		req.AcknowledgedAt = p.AcknowledgedAt
	}
	if p.CompletedAt != nil {
		req.CompletedAt = p.CompletedAt
	}
	if p.ActualCompletion != nil {
		req.ActualCompletion = p.ActualCompletion
	}
	if p.LastEmailSent != nil {
		req.LastEmailSent = p.LastEmailSent
	}
	if p.IncrementEmailsSent {
		req.EmailsSent++
	}
	f.requests[id] = req
	entry.DeletionRequestID = id
	f.audits = append(f.audits, entry)
	return req, nil
}

func (f *fakeStore) ListRequests(_ context.Context, filter Filter, limit, offset int) ([]DeletionRequest, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []DeletionRequest
	for _, r := range f.requests {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		all = append(all, r)
	}
	total := len(all)
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (f *fakeStore) PendingUnsent(_ context.Context, limit int) ([]DeletionRequest, error) {
	return f.where(func(r DeletionRequest) bool { return r.Status == enums.StatusPending && r.SentAt == nil }, limit), nil
}

// FollowUpCandidates ignores maxEmails and last_email_sent so the
// service-side guard is exercised.
func (f *fakeStore) FollowUpCandidates(_ context.Context, sentBefore time.Time, _ int, limit int) ([]DeletionRequest, error) {
	return f.where(func(r DeletionRequest) bool {
		return r.Status == enums.StatusSent && r.SentAt != nil && !r.SentAt.After(sentBefore) && !r.ResponseReceived
	}, limit), nil
}

func (f *fakeStore) OverdueCandidates(_ context.Context, sentBefore time.Time, limit int) ([]DeletionRequest, error) {
	return f.where(func(r DeletionRequest) bool {
		return r.Status == enums.StatusSent && r.SentAt != nil && !r.SentAt.After(sentBefore) && !r.ResponseReceived
	}, limit), nil
}

func (f *fakeStore) StatusCounts(_ context.Context, userID string) (map[enums.RequestStatus]int, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[enums.RequestStatus]int{}
	var cost float64
	for _, r := range f.requests {
		if userID != "" && r.UserID != userID {
			continue
		}
		counts[r.Status]++
		cost += r.Cost
	}
	return counts, cost, nil
}

func (f *fakeStore) MonthlyTrends(context.Context, string, time.Time) ([]MonthlyTrend, error) {
	return nil, nil
}

func (f *fakeStore) ActiveUserSummaries(context.Context) ([]UserSummary, error) {
	return nil, nil
}

func (f *fakeStore) where(pred func(DeletionRequest) bool, limit int) []DeletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []DeletionRequest
	for _, r := range f.requests {
		if pred(r) {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

func (f *fakeStore) put(r DeletionRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[r.ID] = r
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeCompanies struct {
	companies map[string]companies.Company
	failing   map[string]error
	refreshed []string
}

func (f *fakeCompanies) Get(_ context.Context, id string) (companies.Company, error) {
	if err, ok := f.failing[id]; ok {
		return companies.Company{}, err
	}
	c, ok := f.companies[id]
	if !ok {
		return companies.Company{}, companies.ErrNotFound
	}
	return c, nil
}

func (f *fakeCompanies) RefreshSuccessRate(_ context.Context, id string) error {
	f.refreshed = append(f.refreshed, id)
	return nil
}

type recordingPublisher struct {
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ any) error {
	p.keys = append(p.keys, key)
	return nil
}
