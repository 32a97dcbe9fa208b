package emailjobs

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"go.uber.org/zap"

	"wipetrace/internal/domain/deletion"
	"wipetrace/internal/domain/dispatch"
	"wipetrace/internal/domain/notifications"
	"wipetrace/internal/platform/metrics"
)

type Requests interface {
	PendingUnsent(ctx context.Context, limit int) ([]deletion.DeletionRequest, error)
	FollowUpCandidates(ctx context.Context, limit int) ([]deletion.DeletionRequest, error)
	OverdueCandidates(ctx context.Context, limit int) ([]deletion.DeletionRequest, error)
	MarkOverdue(ctx context.Context, id string) (deletion.DeletionRequest, error)
	ActiveUserSummaries(ctx context.Context) ([]deletion.UserSummary, error)
}

type Mailer interface {
	SendInitial(ctx context.Context, requestID string) (dispatch.Result, error)
	SendFollowUp(ctx context.Context, requestID string) (dispatch.Result, error)
}

type Notifier interface {
	Notify(ctx context.Context, in notifications.Input) (notifications.Notification, error)
}

type Config struct {
	BatchSize    int
	DashboardURL string
}

// Runner holds the batch jobs. Each job selects its work by a predicate on
// current state, so re-running one never repeats an item that advanced.
type Runner struct {
	cfg      Config
	requests Requests
	mailer   Mailer
	notifier Notifier
	throttle *dispatch.Throttle
	log      *zap.Logger
}

func NewRunner(cfg Config, requests Requests, mailer Mailer, notifier Notifier, throttle *dispatch.Throttle, log *zap.Logger) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if throttle == nil {
		throttle = dispatch.NewThrottle(0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{cfg: cfg, requests: requests, mailer: mailer, notifier: notifier, throttle: throttle, log: log}
}

// Run executes the named job. "all" runs pending, followups and overdue in
// that order and returns one Result per job.
func (r *Runner) Run(ctx context.Context, name string) ([]Result, error) {
	switch name {
	case JobPending:
		return one(r.ProcessPendingRequests(ctx))
	case JobFollowUps:
		return one(r.SendFollowUpEmails(ctx))
	case JobOverdue:
		return one(r.MarkOverdueRequests(ctx))
	case JobSummaries:
		return one(r.SendDailySummaries(ctx))
	case JobAll:
		return r.RunAll(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
}

func (r *Runner) RunAll(ctx context.Context) ([]Result, error) {
	jobs := map[string]func(context.Context) (Result, error){
		JobPending:   r.ProcessPendingRequests,
		JobFollowUps: r.SendFollowUpEmails,
		JobOverdue:   r.MarkOverdueRequests,
	}
	out := make([]Result, 0, len(AllMembers))
	for _, name := range AllMembers {
		res, err := jobs[name](ctx)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (r *Runner) ProcessPendingRequests(ctx context.Context) (Result, error) {
	res := Result{Job: JobPending, Results: []ItemResult{}}
	found, err := r.requests.PendingUnsent(ctx, r.cfg.BatchSize)
	if err != nil {
		return res, fmt.Errorf("load pending requests: %w", err)
	}
	err = dispatch.Drain(ctx, r.throttle, found, func(ctx context.Context, req deletion.DeletionRequest) {
		sent, err := r.mailer.SendInitial(ctx, req.ID)
		res.add(r.itemFromSend(JobPending, req.ID, sent, err))
	})
	return r.finish(res, err)
}

func (r *Runner) SendFollowUpEmails(ctx context.Context) (Result, error) {
	res := Result{Job: JobFollowUps, Results: []ItemResult{}}
	found, err := r.requests.FollowUpCandidates(ctx, r.cfg.BatchSize)
	if err != nil {
		return res, fmt.Errorf("load follow-up candidates: %w", err)
	}
	err = dispatch.Drain(ctx, r.throttle, found, func(ctx context.Context, req deletion.DeletionRequest) {
		sent, err := r.mailer.SendFollowUp(ctx, req.ID)
		res.add(r.itemFromSend(JobFollowUps, req.ID, sent, err))
	})
	return r.finish(res, err)
}

func (r *Runner) MarkOverdueRequests(ctx context.Context) (Result, error) {
	res := Result{Job: JobOverdue, Results: []ItemResult{}}
	found, err := r.requests.OverdueCandidates(ctx, r.cfg.BatchSize)
	if err != nil {
		return res, fmt.Errorf("load overdue requests: %w", err)
	}
	for _, req := range found {
		if ctx.Err() != nil {
			return r.finish(res, ctx.Err())
		}
		if _, err := r.requests.MarkOverdue(ctx, req.ID); err != nil {
			// A concurrent update moved it first.
			if errors.Is(err, deletion.ErrStateConflict) {
				res.add(ItemResult{ID: req.ID, Skipped: true, Error: err.Error()})
				continue
			}
			r.log.Warn("mark overdue failed", zap.String("job", JobOverdue), zap.String("request_id", req.ID), zap.Error(err))
			res.add(ItemResult{ID: req.ID, Error: err.Error()})
			continue
		}
		r.notify(ctx, notifications.Input{
			UserID:  req.UserID,
			Type:    notifications.TypeWarning,
			Title:   OverdueTitle,
			Message: overdueMessage(req),
			Link:    r.dashboardLink(),
		})
		res.add(ItemResult{ID: req.ID, Success: true})
	}
	return r.finish(res, nil)
}

func (r *Runner) SendDailySummaries(ctx context.Context) (Result, error) {
	res := Result{Job: JobSummaries, Results: []ItemResult{}}
	users, err := r.requests.ActiveUserSummaries(ctx)
	if err != nil {
		return res, fmt.Errorf("load active users: %w", err)
	}
	err = dispatch.Drain(ctx, r.throttle, users, func(ctx context.Context, u deletion.UserSummary) {
		if r.notifier == nil {
			res.add(ItemResult{ID: u.UserID, Skipped: true})
			return
		}
		_, err := r.notifier.Notify(ctx, notifications.Input{
			UserID:  u.UserID,
			Type:    notifications.TypeInfo,
			Title:   SummaryTitle,
			Message: summaryText(u),
			HTML:    summaryHTML(u),
			Link:    r.dashboardLink(),
		})
		if err != nil {
			r.log.Warn("daily summary failed", zap.String("job", JobSummaries), zap.String("user_id", u.UserID), zap.Error(err))
			res.add(ItemResult{ID: u.UserID, Error: err.Error()})
			return
		}
		res.add(ItemResult{ID: u.UserID, Success: true})
	})
	return r.finish(res, err)
}

// itemFromSend folds a dispatch outcome into an item. Items that cannot be
// sent right now (no recipient, already advanced, too soon) are skips.
func (r *Runner) itemFromSend(job, id string, sent dispatch.Result, err error) ItemResult {
	if err != nil {
		if errors.Is(err, dispatch.ErrMissingRecipient) ||
			errors.Is(err, dispatch.ErrFollowUpTooSoon) ||
			errors.Is(err, deletion.ErrStateConflict) {
			return ItemResult{ID: id, Skipped: true, Error: err.Error()}
		}
		r.log.Warn("job send failed", zap.String("job", job), zap.String("request_id", id), zap.Error(err))
		return ItemResult{ID: id, Success: sent.Success, MessageID: sent.MessageID, Error: err.Error()}
	}
	if !sent.Success {
		r.log.Warn("job send failed", zap.String("job", job), zap.String("request_id", id), zap.String("error", sent.Error))
	}
	return ItemResult{ID: id, Success: sent.Success, MessageID: sent.MessageID, Error: sent.Error}
}

func (r *Runner) notify(ctx context.Context, in notifications.Input) {
	if r.notifier == nil {
		return
	}
	if _, err := r.notifier.Notify(ctx, in); err != nil {
		r.log.Warn("notification failed", zap.String("user_id", in.UserID), zap.Error(err))
	}
}

func (r *Runner) finish(res Result, err error) (Result, error) {
	metrics.AddJobItems(res.Job, res.SuccessCount, res.FailureCount, res.Skipped)
	r.log.Info("email job finished",
		zap.String("job", res.Job),
		zap.Int("processed", res.Processed),
		zap.Int("success", res.SuccessCount),
		zap.Int("failure", res.FailureCount),
		zap.Int("skipped", res.Skipped),
	)
	return res, err
}

func (r *Runner) dashboardLink() string {
	if r.cfg.DashboardURL == "" {
		return ""
	}
	return strings.TrimRight(r.cfg.DashboardURL, "/") + "/dashboard/requests"
}

func overdueMessage(req deletion.DeletionRequest) string {
	company := req.CompanyName
	if company == "" {
		company = "the company"
	}
	return fmt.Sprintf("Your %s deletion request to %s has been marked as failed after %d days without a response. You can file a new request or contact the company directly.",
		req.Jurisdiction, company, int(deletion.OverdueAfter/(24*time.Hour)))
}

func summaryText(u deletion.UserSummary) string {
	return fmt.Sprintf("Total requests: %d\nPending: %d\nSent: %d\nIn progress: %d\nCompleted: %d",
		u.Total, u.Pending, u.Sent, u.InProgress, u.Completed)
}

var summaryTemplate = template.Must(template.New("summary").Parse(`<p>Hi {{if .FirstName}}{{.FirstName}}{{else}}there{{end}}, here is where your deletion requests stand today.</p>
<table style="border-collapse:collapse;">
  <tr><td style="padding:4px 12px 4px 0;">Total requests</td><td><strong>{{.Total}}</strong></td></tr>
  <tr><td style="padding:4px 12px 4px 0;">Pending</td><td>{{.Pending}}</td></tr>
  <tr><td style="padding:4px 12px 4px 0;">Sent</td><td>{{.Sent}}</td></tr>
  <tr><td style="padding:4px 12px 4px 0;">In progress</td><td>{{.InProgress}}</td></tr>
  <tr><td style="padding:4px 12px 4px 0;">Completed</td><td>{{.Completed}}</td></tr>
</table>`))

func summaryHTML(u deletion.UserSummary) template.HTML {
	var b strings.Builder
	if err := summaryTemplate.Execute(&b, u); err != nil {
		return ""
	}
	return template.HTML(b.String())
}

func one(res Result, err error) ([]Result, error) {
	return []Result{res}, err
}
