package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wipetrace/internal/domain/companies"
	"wipetrace/internal/domain/deletion"
	"wipetrace/internal/domain/emaillog"
	"wipetrace/internal/domain/enums"
	"wipetrace/internal/domain/templates"
)

const (
	EventEmailSent   = "email.sent"
	EventEmailFailed = "email.failed"

	defaultOriginalSubject = "Data Deletion Request"
)

type RequestService interface {
	Get(ctx context.Context, id string) (deletion.DeletionRequest, error)
	MarkSent(ctx context.Context, id, emailLogID string) (deletion.DeletionRequest, error)
	RecordFollowUp(ctx context.Context, id, emailLogID string) (deletion.DeletionRequest, error)
}

type CompanyReader interface {
	Get(ctx context.Context, id string) (companies.Company, error)
}

type TemplateResolver interface {
	Resolve(ctx context.Context, j enums.Jurisdiction, tt enums.TemplateType, companyID string) (templates.Resolved, error)
}

type EmailLogs interface {
	Begin(ctx context.Context, l emaillog.EmailLog) (emaillog.EmailLog, error)
	MarkSent(ctx context.Context, id, provider, messageID string, at time.Time) error
	MarkFailed(ctx context.Context, id, provider, errorMessage string) error
	FirstForRequest(ctx context.Context, deletionRequestID string) (emaillog.EmailLog, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Dispatcher struct {
	cfg       Config
	requests  RequestService
	companies CompanyReader
	templates TemplateResolver
	logs      EmailLogs
	sender    Sender
	throttle  *Throttle
	events    EventPublisher
	log       *zap.Logger
	now       func() time.Time
}

type Deps struct {
	Requests  RequestService
	Companies CompanyReader
	Templates TemplateResolver
	Logs      EmailLogs
	Sender    Sender
	Throttle  *Throttle
	Events    EventPublisher
	Log       *zap.Logger
}

func New(cfg Config, deps Deps) *Dispatcher {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Sender == nil {
		deps.Sender = &Chain{}
	}
	if deps.Throttle == nil {
		deps.Throttle = NewThrottle(cfg.Interval)
	}
	return &Dispatcher{
		cfg:       cfg,
		requests:  deps.Requests,
		companies: deps.Companies,
		templates: deps.Templates,
		logs:      deps.Logs,
		sender:    deps.Sender,
		throttle:  deps.Throttle,
		events:    deps.Events,
		log:       deps.Log,
		now:       time.Now,
	}
}

func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

func (d *Dispatcher) Throttle() *Throttle {
	return d.throttle
}

// letter is a rendered email ready to be logged and handed to a transport.
type letter struct {
	req        deletion.DeletionRequest
	to         string
	templateID string
	source     templates.Source
	content    templates.Content
}

// SendInitial sends the first letter for a PENDING request and moves it to
// SENT on success. A transport failure leaves the request PENDING and is
// reported in the Result.
func (d *Dispatcher) SendInitial(ctx context.Context, requestID string) (Result, error) {
	req, err := d.requests.Get(ctx, requestID)
	if err != nil {
		return Result{}, err
	}
	if req.Status != enums.StatusPending {
		return Result{}, fmt.Errorf("%w: request is %s, not PENDING", deletion.ErrStateConflict, req.Status)
	}
	l, err := d.composeInitial(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return d.deliver(ctx, l, func(logID string) error {
		_, err := d.requests.MarkSent(ctx, req.ID, logID)
		return err
	})
}

// SendFollowUp chases a SENT request. It refuses when the last email went
// out less than seven days ago. Status stays SENT.
func (d *Dispatcher) SendFollowUp(ctx context.Context, requestID string) (Result, error) {
	req, err := d.requests.Get(ctx, requestID)
	if err != nil {
		return Result{}, err
	}
	if req.Status != enums.StatusSent {
		return Result{}, fmt.Errorf("%w: request is %s, not SENT", deletion.ErrStateConflict, req.Status)
	}
	if req.LastEmailSent != nil && d.now().Sub(*req.LastEmailSent) < deletion.FollowUpAfter {
		return Result{}, ErrFollowUpTooSoon
	}
	l, err := d.composeFollowUp(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return d.deliver(ctx, l, func(logID string) error {
		_, err := d.requests.RecordFollowUp(ctx, req.ID, logID)
		return err
	})
}

// SendBulk runs SendInitial for each id with the throttle between sends. One
// failure does not stop the rest.
func (d *Dispatcher) SendBulk(ctx context.Context, requestIDs []string) (BulkResult, error) {
	out := BulkResult{Results: make([]Result, 0, len(requestIDs))}
	err := Drain(ctx, d.throttle, requestIDs, func(ctx context.Context, id string) {
		res, err := d.SendInitial(ctx, id)
		if err != nil {
			res = Result{RequestID: id, Error: err.Error()}
		}
		if res.Success {
			out.SuccessCount++
		} else {
			out.FailureCount++
		}
		out.Results = append(out.Results, res)
	})
	return out, err
}

// BulkBudget is the longest SendBulk can take for n ids: every send waits out
// the interval and may time out on both transports.
func (d *Dispatcher) BulkBudget(n int) time.Duration {
	return time.Duration(n) * (d.cfg.Interval + 2*d.cfg.SendTimeout)
}

// Preview renders the letter that would be sent for tt without sending or
// logging anything.
func (d *Dispatcher) Preview(ctx context.Context, requestID string, tt enums.TemplateType) (Preview, error) {
	req, err := d.requests.Get(ctx, requestID)
	if err != nil {
		return Preview{}, err
	}
	var l letter
	if tt == enums.TemplateFollowUp {
		l, err = d.composeFollowUp(ctx, req)
	} else {
		l, err = d.compose(ctx, req, tt, d.now())
	}
	if err != nil {
		return Preview{}, err
	}
	return Preview{
		RequestID:  req.ID,
		To:         l.to,
		From:       d.fromHeader(),
		ReplyTo:    d.cfg.ReplyTo,
		Subject:    l.content.Subject,
		Body:       l.content.Body,
		PlainText:  l.content.PlainText,
		TemplateID: l.templateID,
		Source:     string(l.source),
	}, nil
}

func (d *Dispatcher) composeInitial(ctx context.Context, req deletion.DeletionRequest) (letter, error) {
	return d.compose(ctx, req, enums.TemplateInitialRequest, d.now())
}

func (d *Dispatcher) compose(ctx context.Context, req deletion.DeletionRequest, tt enums.TemplateType, deadlineFrom time.Time) (letter, error) {
	company, to, err := d.recipient(ctx, req)
	if err != nil {
		return letter{}, err
	}
	if tt == "" {
		tt = enums.TemplateInitialRequest
	}
	resolved, err := d.templates.Resolve(ctx, req.Jurisdiction, tt, company.ID)
	if err != nil {
		return letter{}, fmt.Errorf("resolve template: %w", err)
	}
	vars := Variables(req, company, templates.FormatDeadline(req.Jurisdiction, deadlineFrom))
	return letter{
		req:        req,
		to:         to,
		templateID: resolved.ID,
		source:     resolved.Source,
		content:    templates.Render(resolved.Content, vars),
	}, nil
}

func (d *Dispatcher) composeFollowUp(ctx context.Context, req deletion.DeletionRequest) (letter, error) {
	company, to, err := d.recipient(ctx, req)
	if err != nil {
		return letter{}, err
	}
	resolved, err := d.templates.Resolve(ctx, req.Jurisdiction, enums.TemplateFollowUp, company.ID)
	if err != nil {
		return letter{}, fmt.Errorf("resolve template: %w", err)
	}

	originalSubject := defaultOriginalSubject
	first, err := d.logs.FirstForRequest(ctx, req.ID)
	switch {
	case err == nil && first.Subject != "":
		originalSubject = first.Subject
	case err != nil && !errors.Is(err, emaillog.ErrNotFound):
		return letter{}, fmt.Errorf("load original email: %w", err)
	}

	vars := Variables(req, company, templates.FormatDeadline(req.Jurisdiction, req.CreatedAt))
	vars[templates.VarJurisdiction] = string(req.Jurisdiction)
	vars[templates.VarOriginalDate] = req.CreatedAt.Format(templates.DeadlineLayout)
	vars[templates.VarOriginalSubject] = originalSubject

	return letter{
		req:        req,
		to:         to,
		templateID: resolved.ID,
		source:     resolved.Source,
		content:    templates.Render(resolved.Content, vars),
	}, nil
}

func (d *Dispatcher) recipient(ctx context.Context, req deletion.DeletionRequest) (companies.Company, string, error) {
	company, err := d.companies.Get(ctx, req.CompanyID)
	if err != nil {
		return companies.Company{}, "", err
	}
	to := company.Recipient()
	if to == "" {
		return companies.Company{}, "", fmt.Errorf("%w: %s", ErrMissingRecipient, company.Name)
	}
	return company, to, nil
}

// deliver logs the attempt as PENDING, sends it, settles the log as SENT or
// FAILED and on success runs onSent with the log id.
func (d *Dispatcher) deliver(ctx context.Context, l letter, onSent func(logID string) error) (Result, error) {
	entry, err := d.logs.Begin(ctx, emaillog.EmailLog{
		DeletionRequestID: l.req.ID,
		TemplateID:        l.templateID,
		ToEmail:           l.to,
		FromEmail:         d.cfg.FromEmail,
		Subject:           l.content.Subject,
		Body:              l.content.Body,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create email log: %w", err)
	}
	result := Result{RequestID: l.req.ID, EmailLogID: entry.ID}
	logger := d.log.With(zap.String("request_id", l.req.ID), zap.String("email_log_id", entry.ID))

	receipt, sendErr := d.sender.Send(ctx, Message{
		To:       l.to,
		From:     d.cfg.FromEmail,
		FromName: d.cfg.FromName,
		ReplyTo:  d.cfg.ReplyTo,
		Subject:  l.content.Subject,
		HTML:     l.content.Body,
		Text:     l.content.PlainText,
	})
	if sendErr != nil {
		if err := d.logs.MarkFailed(ctx, entry.ID, "", sendErr.Error()); err != nil {
			logger.Warn("mark email log failed", zap.Error(err))
		}
		logger.Warn("deletion email not sent", zap.Error(sendErr))
		d.publish(ctx, EventEmailFailed, l, Receipt{}, sendErr)
		result.Error = sendErr.Error()
		return result, nil
	}

	result.Success = true
	result.Provider = receipt.Provider
	result.MessageID = receipt.MessageID
	if err := d.logs.MarkSent(ctx, entry.ID, receipt.Provider, receipt.MessageID, d.now()); err != nil {
		logger.Warn("mark email log sent", zap.Error(err))
	}
	if err := onSent(entry.ID); err != nil {
		return result, fmt.Errorf("record sent email: %w", err)
	}
	logger.Info("deletion email sent", zap.String("provider", receipt.Provider), zap.String("message_id", receipt.MessageID))
	d.publish(ctx, EventEmailSent, l, receipt, nil)
	return result, nil
}

func (d *Dispatcher) publish(ctx context.Context, key string, l letter, receipt Receipt, sendErr error) {
	if d.events == nil {
		return
	}
	payload := map[string]any{
		"requestId":  l.req.ID,
		"userId":     l.req.UserID,
		"to":         l.to,
		"provider":   receipt.Provider,
		"messageId":  receipt.MessageID,
		"occurredAt": d.now().UTC(),
	}
	if sendErr != nil {
		payload["error"] = sendErr.Error()
	}
	if err := d.events.Publish(ctx, key, payload); err != nil {
		d.log.Warn("publish email event failed", zap.String("event", key), zap.Error(err))
	}
}

func (d *Dispatcher) fromHeader() string {
	if d.cfg.FromName == "" {
		return d.cfg.FromEmail
	}
	return fmt.Sprintf("%s <%s>", d.cfg.FromName, d.cfg.FromEmail)
}

// Variables are drawn from the request's requestor snapshot, never the live
// user profile.
func Variables(req deletion.DeletionRequest, company companies.Company, deadline string) templates.Variables {
	return templates.Variables{
		templates.VarClientName:    req.RequestorName,
		templates.VarClientEmail:   req.RequestorEmail,
		templates.VarClientPhone:   req.RequestorPhone,
		templates.VarClientAddress: req.RequestorAddress,
		templates.VarCompanyName:   company.Name,
		templates.VarDeadline:      deadline,
	}
}
