package emailjobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wipetrace/internal/domain/deletion"
	"wipetrace/internal/domain/dispatch"
	"wipetrace/internal/domain/enums"
	"wipetrace/internal/domain/notifications"
)

type fakeRequests struct {
	pending  []deletion.DeletionRequest
	followUp []deletion.DeletionRequest
	overdue  []deletion.DeletionRequest
	users    []deletion.UserSummary
	marked   []string
	markErr  map[string]error
	loadErr  error
}

func (f *fakeRequests) PendingUnsent(context.Context, int) ([]deletion.DeletionRequest, error) {
	return f.pending, f.loadErr
}

func (f *fakeRequests) FollowUpCandidates(context.Context, int) ([]deletion.DeletionRequest, error) {
	return f.followUp, f.loadErr
}

func (f *fakeRequests) OverdueCandidates(context.Context, int) ([]deletion.DeletionRequest, error) {
	return f.overdue, f.loadErr
}

func (f *fakeRequests) MarkOverdue(_ context.Context, id string) (deletion.DeletionRequest, error) {
	if err := f.markErr[id]; err != nil {
		return deletion.DeletionRequest{}, err
	}
	f.marked = append(f.marked, id)
	return deletion.DeletionRequest{ID: id, Status: enums.StatusFailed, InternalNotes: deletion.OverdueNote}, nil
}

func (f *fakeRequests) ActiveUserSummaries(context.Context) ([]deletion.UserSummary, error) {
	return f.users, f.loadErr
}

type scriptedMailer struct {
	initial  map[string]error
	failSend map[string]bool
	calls    []string
}

func (m *scriptedMailer) send(id string) (dispatch.Result, error) {
	m.calls = append(m.calls, id)
	if err := m.initial[id]; err != nil {
		return dispatch.Result{}, err
	}
	if m.failSend[id] {
		return dispatch.Result{RequestID: id, Error: "all email transports failed"}, nil
	}
	return dispatch.Result{RequestID: id, Success: true, MessageID: "msg-" + id}, nil
}

func (m *scriptedMailer) SendInitial(_ context.Context, id string) (dispatch.Result, error) {
	return m.send(id)
}

func (m *scriptedMailer) SendFollowUp(_ context.Context, id string) (dispatch.Result, error) {
	return m.send(id)
}

type recordingNotifier struct {
	inputs []notifications.Input
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, in notifications.Input) (notifications.Notification, error) {
	n.inputs = append(n.inputs, in)
	return notifications.Notification{ID: "n-1"}, n.err
}

func req(id string) deletion.DeletionRequest {
	return deletion.DeletionRequest{ID: id, UserID: "u-1", CompanyName: "Acme Data", Jurisdiction: enums.CCPA, Status: enums.StatusSent}
}

func TestProcessPendingRequestsCountsOutcomes(t *testing.T) {
	requests := &fakeRequests{pending: []deletion.DeletionRequest{req("a"), req("b"), req("c")}}
	mailer := &scriptedMailer{
		initial:  map[string]error{"b": dispatch.ErrMissingRecipient},
		failSend: map[string]bool{"c": true},
	}
	runner := NewRunner(Config{}, requests, mailer, nil, nil, nil)

	res, err := runner.ProcessPendingRequests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, JobPending, res.Job)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 1, res.FailureCount)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Results, 3)
	assert.Equal(t, "msg-a", res.Results[0].MessageID)
	assert.True(t, res.Results[1].Skipped)
	assert.Equal(t, "all email transports failed", res.Results[2].Error)
	assert.Equal(t, []string{"a", "b", "c"}, mailer.calls)
}

func TestProcessPendingRequestsLoadError(t *testing.T) {
	requests := &fakeRequests{loadErr: errors.New("db down")}
	_, err := NewRunner(Config{}, requests, &scriptedMailer{}, nil, nil, nil).ProcessPendingRequests(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestSendFollowUpEmailsSkipsTooSoon(t *testing.T) {
	requests := &fakeRequests{followUp: []deletion.DeletionRequest{req("a"), req("b")}}
	mailer := &scriptedMailer{initial: map[string]error{"a": dispatch.ErrFollowUpTooSoon}}

	res, err := NewRunner(Config{}, requests, mailer, nil, nil, nil).SendFollowUpEmails(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.SuccessCount)
	assert.Zero(t, res.FailureCount)
}

func TestMarkOverdueRequestsNotifiesOncePerRequest(t *testing.T) {
	requests := &fakeRequests{
		overdue: []deletion.DeletionRequest{req("a"), req("b"), req("c")},
		markErr: map[string]error{
			"b": deletion.ErrStateConflict,
			"c": errors.New("db down"),
		},
	}
	notifier := &recordingNotifier{}

	res, err := NewRunner(Config{DashboardURL: "https://app.test/"}, requests, nil, notifier, nil, nil).MarkOverdueRequests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, requests.marked)
	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.FailureCount)

	require.Len(t, notifier.inputs, 1)
	in := notifier.inputs[0]
	assert.Equal(t, "u-1", in.UserID)
	assert.Equal(t, notifications.TypeWarning, in.Type)
	assert.Equal(t, OverdueTitle, in.Title)
	assert.Contains(t, in.Message, "Acme Data")
	assert.Contains(t, in.Message, "60 days")
	assert.Equal(t, "https://app.test/dashboard/requests", in.Link)
}

func TestSendDailySummaries(t *testing.T) {
	requests := &fakeRequests{users: []deletion.UserSummary{
		{UserID: "u-1", FirstName: "Ana", Total: 5, Pending: 2, Sent: 1, InProgress: 1, Completed: 1},
		{UserID: "u-2", Total: 1, Pending: 1},
	}}
	notifier := &recordingNotifier{}

	res, err := NewRunner(Config{DashboardURL: "https://app.test"}, requests, nil, notifier, nil, nil).SendDailySummaries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)

	require.Len(t, notifier.inputs, 2)
	first := notifier.inputs[0]
	assert.Equal(t, SummaryTitle, first.Title)
	assert.Contains(t, first.Message, "Pending: 2")
	assert.Contains(t, string(first.HTML), "Hi Ana")
	assert.Contains(t, string(notifier.inputs[1].HTML), "Hi there")
	assert.Equal(t, "https://app.test/dashboard/requests", first.Link)
}

func TestSendDailySummariesReportsNotifyFailure(t *testing.T) {
	requests := &fakeRequests{users: []deletion.UserSummary{{UserID: "u-1", Total: 1}}}
	notifier := &recordingNotifier{err: errors.New("insert failed")}

	res, err := NewRunner(Config{}, requests, nil, notifier, nil, nil).SendDailySummaries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailureCount)
}

func TestRunDispatchesByName(t *testing.T) {
	requests := &fakeRequests{pending: []deletion.DeletionRequest{req("a")}, overdue: []deletion.DeletionRequest{req("o")}}
	runner := NewRunner(Config{}, requests, &scriptedMailer{}, &recordingNotifier{}, nil, nil)

	out, err := runner.Run(context.Background(), JobAll)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []string{JobPending, JobFollowUps, JobOverdue}, []string{out[0].Job, out[1].Job, out[2].Job})
	assert.Equal(t, 1, out[0].SuccessCount)
	assert.Equal(t, 1, out[2].SuccessCount)

	out, err = runner.Run(context.Background(), JobSummaries)
	require.NoError(t, err)
	require.Len(t, out, 1)

	_, err = runner.Run(context.Background(), "vacuum")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestPendingJobThrottlesSends(t *testing.T) {
	requests := &fakeRequests{pending: []deletion.DeletionRequest{req("a"), req("b"), req("c")}}
	runner := NewRunner(Config{}, requests, &scriptedMailer{}, nil, dispatch.NewThrottle(25*time.Millisecond), nil)

	start := time.Now()
	res, err := runner.ProcessPendingRequests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.SuccessCount)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}
