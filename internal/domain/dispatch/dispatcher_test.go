package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wipetrace/internal/domain/companies"
	"wipetrace/internal/domain/deletion"
	"wipetrace/internal/domain/emaillog"
	"wipetrace/internal/domain/enums"
	"wipetrace/internal/domain/templates"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeRequests struct {
	byID      map[string]deletion.DeletionRequest
	sent      []string
	followUps []string
	markErr   error
}

func (f *fakeRequests) Get(_ context.Context, id string) (deletion.DeletionRequest, error) {
	r, ok := f.byID[id]
	if !ok {
		return deletion.DeletionRequest{}, deletion.ErrNotFound
	}
	return r, nil
}

func (f *fakeRequests) MarkSent(_ context.Context, id, logID string) (deletion.DeletionRequest, error) {
	if f.markErr != nil {
		return deletion.DeletionRequest{}, f.markErr
	}
	r := f.byID[id]
	r.Status = enums.StatusSent
	r.EmailsSent++
	f.byID[id] = r
	f.sent = append(f.sent, id+":"+logID)
	return r, nil
}

func (f *fakeRequests) RecordFollowUp(_ context.Context, id, logID string) (deletion.DeletionRequest, error) {
	r := f.byID[id]
	r.EmailsSent++
	f.byID[id] = r
	f.followUps = append(f.followUps, id+":"+logID)
	return r, nil
}

type fakeCompanyReader map[string]companies.Company

func (f fakeCompanyReader) Get(_ context.Context, id string) (companies.Company, error) {
	c, ok := f[id]
	if !ok {
		return companies.Company{}, companies.ErrNotFound
	}
	return c, nil
}

type builtinResolver struct{}

func (builtinResolver) Resolve(_ context.Context, j enums.Jurisdiction, tt enums.TemplateType, _ string) (templates.Resolved, error) {
	return templates.Resolved{Source: templates.SourceBuiltin, Content: templates.BuiltinFor(j, tt)}, nil
}

type fakeLogs struct {
	seq    int
	logs   map[string]emaillog.EmailLog
	first  *emaillog.EmailLog
	failed []string
}

func newFakeLogs() *fakeLogs {
	return &fakeLogs{logs: map[string]emaillog.EmailLog{}}
}

func (f *fakeLogs) Begin(_ context.Context, l emaillog.EmailLog) (emaillog.EmailLog, error) {
	f.seq++
	l.ID = fmt.Sprintf("log-%d", f.seq)
	l.Status = enums.EmailPending
	f.logs[l.ID] = l
	return l, nil
}

func (f *fakeLogs) MarkSent(_ context.Context, id, provider, messageID string, at time.Time) error {
	l := f.logs[id]
	l.Status = enums.EmailSent
	l.Provider = provider
	l.ProviderMessageID = messageID
	l.SentAt = &at
	f.logs[id] = l
	return nil
}

func (f *fakeLogs) MarkFailed(_ context.Context, id, _, msg string) error {
	l := f.logs[id]
	l.Status = enums.EmailFailed
	l.ErrorMessage = msg
	f.logs[id] = l
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeLogs) FirstForRequest(context.Context, string) (emaillog.EmailLog, error) {
	if f.first == nil {
		return emaillog.EmailLog{}, emaillog.ErrNotFound
	}
	return *f.first, nil
}

type captureSender struct {
	sent []Message
	err  error
}

func (c *captureSender) Send(_ context.Context, m Message) (Receipt, error) {
	if c.err != nil {
		return Receipt{}, c.err
	}
	c.sent = append(c.sent, m)
	return Receipt{Provider: "sendgrid", MessageID: fmt.Sprintf("msg-%d", len(c.sent))}, nil
}

type capturePublisher struct{ keys []string }

func (p *capturePublisher) Publish(_ context.Context, key string, _ any) error {
	p.keys = append(p.keys, key)
	return nil
}

type harness struct {
	d        *Dispatcher
	requests *fakeRequests
	logs     *fakeLogs
	sender   *captureSender
	events   *capturePublisher
}

func newHarness(reqs ...deletion.DeletionRequest) *harness {
	h := &harness{
		requests: &fakeRequests{byID: map[string]deletion.DeletionRequest{}},
		logs:     newFakeLogs(),
		sender:   &captureSender{},
		events:   &capturePublisher{},
	}
	for _, r := range reqs {
		h.requests.byID[r.ID] = r
	}
	cos := fakeCompanyReader{
		"co-acme":   {ID: "co-acme", Name: "Acme Data", PrivacyEmail: "privacy@acme.test", ContactEmail: "hello@acme.test"},
		"co-silent": {ID: "co-silent", Name: "Silent Corp"},
	}
	h.d = New(Config{FromEmail: "requests@wipetrace.test", FromName: "Wipe My Trace"}, Deps{
		Requests:  h.requests,
		Companies: cos,
		Templates: builtinResolver{},
		Logs:      h.logs,
		Sender:    h.sender,
		Events:    h.events,
	}).WithClock(func() time.Time { return now })
	return h
}

func pendingRequest(id string, j enums.Jurisdiction) deletion.DeletionRequest {
	return deletion.DeletionRequest{
		ID:             id,
		UserID:         "u-1",
		CompanyID:      "co-acme",
		Jurisdiction:   j,
		Status:         enums.StatusPending,
		RequestorName:  "Ana Souza",
		RequestorEmail: "ana@example.test",
		CreatedAt:      now.AddDate(0, 0, -10),
	}
}

func TestSendInitialSuccess(t *testing.T) {
	h := newHarness(pendingRequest("dr-1", enums.CCPA))

	res, err := h.d.SendInitial(context.Background(), "dr-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "sendgrid", res.Provider)
	assert.Equal(t, "msg-1", res.MessageID)
	assert.Equal(t, "log-1", res.EmailLogID)

	require.Len(t, h.sender.sent, 1)
	msg := h.sender.sent[0]
	assert.Equal(t, "privacy@acme.test", msg.To)
	assert.Equal(t, "requests@wipetrace.test", msg.From)
	assert.Contains(t, msg.Text, "Ana Souza")
	assert.Contains(t, msg.Text, "April 15, 2024")
	assert.NotContains(t, msg.Text, "{{")

	assert.Equal(t, []string{"dr-1:log-1"}, h.requests.sent)
	assert.Equal(t, enums.EmailSent, h.logs.logs["log-1"].Status)
	assert.Equal(t, "msg-1", h.logs.logs["log-1"].ProviderMessageID)
	assert.Equal(t, []string{EventEmailSent}, h.events.keys)
}

func TestSendInitialTransportFailureKeepsPending(t *testing.T) {
	h := newHarness(pendingRequest("dr-1", enums.GDPR))
	h.sender.err = errors.New("all email transports failed: smtp down")

	res, err := h.d.SendInitial(context.Background(), "dr-1")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "smtp down")

	assert.Empty(t, h.requests.sent)
	assert.Equal(t, enums.StatusPending, h.requests.byID["dr-1"].Status)
	assert.Equal(t, []string{"log-1"}, h.logs.failed)
	assert.Equal(t, enums.EmailFailed, h.logs.logs["log-1"].Status)
	assert.Equal(t, []string{EventEmailFailed}, h.events.keys)
}

func TestSendInitialRejectsNonPending(t *testing.T) {
	r := pendingRequest("dr-1", enums.CCPA)
	r.Status = enums.StatusSent
	h := newHarness(r)

	_, err := h.d.SendInitial(context.Background(), "dr-1")
	assert.ErrorIs(t, err, deletion.ErrStateConflict)
	assert.Empty(t, h.sender.sent)
}

func TestSendInitialMissingRecipient(t *testing.T) {
	r := pendingRequest("dr-1", enums.CCPA)
	r.CompanyID = "co-silent"
	h := newHarness(r)

	_, err := h.d.SendInitial(context.Background(), "dr-1")
	assert.ErrorIs(t, err, ErrMissingRecipient)
	assert.Empty(t, h.logs.logs)
}

func TestSendInitialUnknownRequest(t *testing.T) {
	h := newHarness()
	_, err := h.d.SendInitial(context.Background(), "nope")
	assert.ErrorIs(t, err, deletion.ErrNotFound)
}

func TestSendInitialRecordFailureSurfaces(t *testing.T) {
	h := newHarness(pendingRequest("dr-1", enums.CCPA))
	h.requests.markErr = deletion.ErrStateConflict

	res, err := h.d.SendInitial(context.Background(), "dr-1")
	require.Error(t, err)
	assert.True(t, res.Success)
	assert.ErrorIs(t, err, deletion.ErrStateConflict)
}

func TestSendFollowUp(t *testing.T) {
	r := pendingRequest("dr-1", enums.GDPR)
	r.Status = enums.StatusSent
	last := now.AddDate(0, 0, -8)
	r.SentAt, r.LastEmailSent = &last, &last
	r.EmailsSent = 1
	h := newHarness(r)
	h.logs.first = &emaillog.EmailLog{Subject: "GDPR Article 17 erasure request"}

	res, err := h.d.SendFollowUp(context.Background(), "dr-1")
	require.NoError(t, err)
	assert.True(t, res.Success)

	require.Len(t, h.sender.sent, 1)
	msg := h.sender.sent[0]
	assert.Equal(t, "Follow-up: Data Deletion Request - GDPR Compliance Required", msg.Subject)
	assert.Contains(t, msg.Text, "GDPR Article 17 erasure request")
	assert.Contains(t, msg.Text, r.CreatedAt.Format(templates.DeadlineLayout))
	assert.Equal(t, []string{"dr-1:log-1"}, h.requests.followUps)
	assert.Equal(t, enums.StatusSent, h.requests.byID["dr-1"].Status)
}

func TestSendFollowUpTooSoon(t *testing.T) {
	r := pendingRequest("dr-1", enums.CCPA)
	r.Status = enums.StatusSent
	last := now.AddDate(0, 0, -3)
	r.LastEmailSent = &last
	h := newHarness(r)

	_, err := h.d.SendFollowUp(context.Background(), "dr-1")
	assert.ErrorIs(t, err, ErrFollowUpTooSoon)
	assert.Empty(t, h.sender.sent)
}

func TestSendFollowUpRequiresSent(t *testing.T) {
	h := newHarness(pendingRequest("dr-1", enums.CCPA))
	_, err := h.d.SendFollowUp(context.Background(), "dr-1")
	assert.ErrorIs(t, err, deletion.ErrStateConflict)
}

func TestSendBulkCountsEachOutcome(t *testing.T) {
	done := pendingRequest("dr-2", enums.CCPA)
	done.Status = enums.StatusCompleted
	h := newHarness(pendingRequest("dr-1", enums.CCPA), done, pendingRequest("dr-3", enums.PIPEDA))

	out, err := h.d.SendBulk(context.Background(), []string{"dr-1", "dr-2", "dr-3", "dr-missing"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.SuccessCount)
	assert.Equal(t, 2, out.FailureCount)
	require.Len(t, out.Results, 4)
	assert.Equal(t, "dr-2", out.Results[1].RequestID)
	assert.NotEmpty(t, out.Results[1].Error)
	assert.Len(t, h.sender.sent, 2)
}

func TestPreviewDoesNotSend(t *testing.T) {
	h := newHarness(pendingRequest("dr-1", enums.LGPD))

	p, err := h.d.Preview(context.Background(), "dr-1", enums.TemplateInitialRequest)
	require.NoError(t, err)
	assert.Equal(t, "privacy@acme.test", p.To)
	assert.Equal(t, "Wipe My Trace <requests@wipetrace.test>", p.From)
	assert.Equal(t, string(templates.SourceBuiltin), p.Source)
	assert.Contains(t, p.PlainText, "Ana Souza")
	assert.Empty(t, h.sender.sent)
	assert.Empty(t, h.logs.logs)
}

func TestNilSenderReportsNotConfigured(t *testing.T) {
	r := pendingRequest("dr-1", enums.CCPA)
	d := New(Config{FromEmail: "x@y.test"}, Deps{
		Requests:  &fakeRequests{byID: map[string]deletion.DeletionRequest{"dr-1": r}},
		Companies: fakeCompanyReader{"co-acme": {ID: "co-acme", Name: "Acme", Email: "a@acme.test"}},
		Templates: builtinResolver{},
		Logs:      newFakeLogs(),
	})
	res, err := d.SendInitial(context.Background(), "dr-1")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, ErrNoTransportConfigured.Error())
}

func TestBulkBudgetCoversIntervalAndBothTransports(t *testing.T) {
	d := New(Config{Interval: 2 * time.Second, SendTimeout: 15 * time.Second}, Deps{})
	assert.Equal(t, 100*32*time.Second, d.BulkBudget(100))
	assert.Zero(t, d.BulkBudget(0))
}
