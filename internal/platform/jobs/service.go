package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wipetrace/internal/domain/emailjobs"
	"wipetrace/internal/platform/lock"
	"wipetrace/internal/platform/metrics"
	"wipetrace/internal/requestctx"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

var ErrAlreadyRunning = errors.New("job already running")

type Runner interface {
	Run(ctx context.Context, name string) ([]emailjobs.Result, error)
}

type RunStore interface {
	StartRun(ctx context.Context, jobType string) (string, error)
	FinishRun(ctx context.Context, runID, status string, details []byte) error
}

// Schedule maps a job name to its interval. Jobs with no positive interval
// only run when triggered.
type Schedule map[string]time.Duration

type Service struct {
	runner   Runner
	runs     RunStore
	locker   lock.Locker
	lockTTL  time.Duration
	schedule Schedule
	log      *zap.Logger
	queue    chan string
}

func New(runner Runner, runs RunStore, locker lock.Locker, lockTTL time.Duration, schedule Schedule, log *zap.Logger) *Service {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		runner:   runner,
		runs:     runs,
		locker:   locker,
		lockTTL:  lockTTL,
		schedule: schedule,
		log:      log,
		queue:    make(chan string, 16),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	for name, interval := range s.schedule {
		if interval > 0 {
			go s.every(ctx, name, interval)
			s.log.Info("job scheduled", zap.String("job", name), zap.Duration("interval", interval))
		}
	}
}

// Enqueue hands name to the background worker. A full queue drops the run;
// the next tick or trigger picks the work up again.
func (s *Service) Enqueue(name string) bool {
	select {
	case s.queue <- name:
		return true
	default:
		s.log.Warn("job queue full", zap.String("job", name))
		return false
	}
}

// RunTimeout bounds one run. It matches the lock TTL so a lock never expires
// under a live run.
func (s *Service) RunTimeout() time.Duration {
	return s.lockTTL
}

// RunNow executes name inline under the job lock.
func (s *Service) RunNow(ctx context.Context, name string) ([]emailjobs.Result, error) {
	ctx = requestctx.Ensure(ctx, "job-"+name)
	release, ok := s.acquire(ctx, name)
	if !ok {
		s.record(ctx, name, StatusSkipped, map[string]any{"reason": ErrAlreadyRunning.Error()})
		metrics.ObserveJob(name, StatusSkipped, 0)
		return nil, ErrAlreadyRunning
	}
	defer release(context.WithoutCancel(ctx))

	runID := s.start(ctx, name)
	started := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, s.lockTTL)
	results, err := s.runner.Run(runCtx, name)
	cancel()

	status := StatusCompleted
	details := map[string]any{"results": results}
	if err != nil {
		status = StatusFailed
		details["error"] = err.Error()
	}
	metrics.ObserveJob(name, status, time.Since(started))
	s.finish(context.WithoutCancel(ctx), runID, status, details)
	return results, err
}

// acquire takes the locks for every job name covers. "all" holds the lock
// of each member, taken in AllMembers order, so it never overlaps a single
// run of one of them.
func (s *Service) acquire(ctx context.Context, name string) (lock.Release, bool) {
	keys := []string{name}
	if name == emailjobs.JobAll {
		keys = emailjobs.AllMembers
	}
	held := make([]lock.Release, 0, len(keys))
	releaseAll := func(ctx context.Context) {
		for i := len(held) - 1; i >= 0; i-- {
			held[i](ctx)
		}
	}
	for _, key := range keys {
		release, ok := s.locker.Acquire(ctx, key, s.lockTTL)
		if !ok {
			releaseAll(context.WithoutCancel(ctx))
			return nil, false
		}
		held = append(held, release)
	}
	return releaseAll, true
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case name := <-s.queue:
			if _, err := s.RunNow(ctx, name); err != nil && !errors.Is(err, ErrAlreadyRunning) {
				s.log.Warn("job run failed", zap.String("job", name), zap.Error(err))
			}
		}
	}
}

func (s *Service) every(ctx context.Context, name string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(name)
		}
	}
}

func (s *Service) start(ctx context.Context, name string) string {
	if s.runs == nil {
		return ""
	}
	id, err := s.runs.StartRun(ctx, name)
	if err != nil {
		s.log.Warn("job run insert failed", zap.String("job", name), zap.Error(err))
		return ""
	}
	return id
}

func (s *Service) finish(ctx context.Context, runID, status string, details any) {
	if s.runs == nil || runID == "" {
		return
	}
	if err := s.runs.FinishRun(ctx, runID, status, marshalDetails(details, s.log)); err != nil {
		s.log.Warn("job run update failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func (s *Service) record(ctx context.Context, name, status string, details any) {
	runID := s.start(ctx, name)
	s.finish(ctx, runID, status, details)
}

func marshalDetails(details any, log *zap.Logger) []byte {
	raw, err := json.Marshal(details)
	if err != nil {
		log.Warn("job details marshal failed", zap.Error(err))
		return []byte("{}")
	}
	return raw
}

// ScheduleFor builds the schedule from per-job intervals.
func ScheduleFor(pending, followUps, overdue, summaries time.Duration) Schedule {
	return Schedule{
		emailjobs.JobPending:   pending,
		emailjobs.JobFollowUps: followUps,
		emailjobs.JobOverdue:   overdue,
		emailjobs.JobSummaries: summaries,
	}
}

func (s Schedule) String() string {
	return fmt.Sprintf("pending=%s followups=%s overdue=%s summaries=%s",
		s[emailjobs.JobPending], s[emailjobs.JobFollowUps], s[emailjobs.JobOverdue], s[emailjobs.JobSummaries])
}
