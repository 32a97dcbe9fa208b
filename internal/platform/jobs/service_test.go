package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wipetrace/internal/domain/emailjobs"
	"wipetrace/internal/platform/lock"
)

type fakeRunner struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (f *fakeRunner) Run(_ context.Context, name string) ([]emailjobs.Result, error) {
	f.mu.Lock()
	f.names = append(f.names, name)
	f.mu.Unlock()
	return []emailjobs.Result{{Job: name, Processed: 2, SuccessCount: 2}}, f.err
}

func (f *fakeRunner) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.names...)
}

type run struct {
	job     string
	status  string
	details map[string]any
}

type fakeRuns struct {
	mu   sync.Mutex
	runs map[string]*run
	seq  int
}

func newFakeRuns() *fakeRuns { return &fakeRuns{runs: map[string]*run{}} }

func (f *fakeRuns) StartRun(_ context.Context, jobType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := string(rune('a' + f.seq - 1))
	f.runs[id] = &run{job: jobType, status: StatusRunning}
	return id, nil
}

func (f *fakeRuns) FinishRun(_ context.Context, id, status string, details []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.runs[id]
	r.status = status
	return json.Unmarshal(details, &r.details)
}

func (f *fakeRuns) statuses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for i := 0; i < f.seq; i++ {
		out = append(out, f.runs[string(rune('a'+i))].status)
	}
	return out
}

func TestRunNowRecordsCompletedRun(t *testing.T) {
	runner := &fakeRunner{}
	runs := newFakeRuns()
	svc := New(runner, runs, nil, time.Minute, nil, nil)

	results, err := svc.RunNow(context.Background(), emailjobs.JobPending)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].SuccessCount)
	assert.Equal(t, []string{StatusCompleted}, runs.statuses())
	assert.Contains(t, runs.runs["a"].details, "results")
}

func TestRunNowRecordsFailure(t *testing.T) {
	runs := newFakeRuns()
	svc := New(&fakeRunner{err: errors.New("db down")}, runs, nil, time.Minute, nil, nil)

	_, err := svc.RunNow(context.Background(), emailjobs.JobOverdue)
	require.Error(t, err)
	assert.Equal(t, []string{StatusFailed}, runs.statuses())
	assert.Equal(t, "db down", runs.runs["a"].details["error"])
}

func TestRunNowSkipsWhenLocked(t *testing.T) {
	locker := lock.NewLocal()
	release, ok := locker.Acquire(context.Background(), emailjobs.JobFollowUps, time.Minute)
	require.True(t, ok)
	defer release(context.Background())

	runner := &fakeRunner{}
	runs := newFakeRuns()
	_, err := New(runner, runs, locker, time.Minute, nil, nil).RunNow(context.Background(), emailjobs.JobFollowUps)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Empty(t, runner.calls())
	assert.Equal(t, []string{StatusSkipped}, runs.statuses())
}

func TestScheduledJobRuns(t *testing.T) {
	runner := &fakeRunner{}
	svc := New(runner, nil, nil, time.Minute, Schedule{emailjobs.JobSummaries: 20 * time.Millisecond, emailjobs.JobOverdue: 0}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.Start(ctx)
	assert.Eventually(t, func() bool {
		calls := runner.calls()
		return len(calls) > 0 && calls[0] == emailjobs.JobSummaries
	}, time.Second, 10*time.Millisecond)
	assert.NotContains(t, runner.calls(), emailjobs.JobOverdue)
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	svc := New(&fakeRunner{}, nil, nil, time.Minute, nil, nil)
	for i := 0; i < cap(svc.queue); i++ {
		require.True(t, svc.Enqueue(emailjobs.JobPending))
	}
	assert.False(t, svc.Enqueue(emailjobs.JobPending))
}

func TestScheduleFor(t *testing.T) {
	s := ScheduleFor(time.Minute, 0, time.Hour, 0)
	assert.Equal(t, time.Minute, s[emailjobs.JobPending])
	assert.Contains(t, s.String(), "overdue=1h0m0s")
}

type blockingRunner struct {
	fakeRunner
	started chan string
	unblock chan struct{}
}

func (b *blockingRunner) Run(ctx context.Context, name string) ([]emailjobs.Result, error) {
	b.started <- name
	<-b.unblock
	return b.fakeRunner.Run(ctx, name)
}

func TestRunAllHoldsMemberLocks(t *testing.T) {
	runner := &blockingRunner{started: make(chan string, 1), unblock: make(chan struct{})}
	svc := New(runner, nil, lock.NewLocal(), time.Minute, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.RunNow(context.Background(), emailjobs.JobAll)
		done <- err
	}()
	require.Equal(t, emailjobs.JobAll, <-runner.started)

	for _, member := range emailjobs.AllMembers {
		_, err := svc.RunNow(context.Background(), member)
		assert.ErrorIs(t, err, ErrAlreadyRunning, member)
	}

	close(runner.unblock)
	require.NoError(t, <-done)
	assert.Equal(t, []string{emailjobs.JobAll}, runner.calls())

	// Every member lock is free again once all finishes.
	_, err := svc.RunNow(context.Background(), emailjobs.JobPending)
	require.NoError(t, err)
}

func TestRunAllSkipsWhileMemberRuns(t *testing.T) {
	locker := lock.NewLocal()
	release, ok := locker.Acquire(context.Background(), emailjobs.JobOverdue, time.Minute)
	require.True(t, ok)

	runner := &fakeRunner{}
	svc := New(runner, nil, locker, time.Minute, nil, nil)
	_, err := svc.RunNow(context.Background(), emailjobs.JobAll)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Empty(t, runner.calls())

	// The pending and followups locks taken before overdue were handed back.
	_, err = svc.RunNow(context.Background(), emailjobs.JobPending)
	assert.NoError(t, err)

	release(context.Background())
	_, err = svc.RunNow(context.Background(), emailjobs.JobAll)
	assert.NoError(t, err)
}

type slowRunner struct{}

func (slowRunner) Run(ctx context.Context, name string) ([]emailjobs.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunNowStopsAtLockTTL(t *testing.T) {
	runs := newFakeRuns()
	svc := New(slowRunner{}, runs, nil, 30*time.Millisecond, nil, nil)
	assert.Equal(t, 30*time.Millisecond, svc.RunTimeout())

	_, err := svc.RunNow(context.Background(), emailjobs.JobPending)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = svc.RunNow(context.Background(), emailjobs.JobPending)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{StatusFailed, StatusFailed}, runs.statuses())
}
