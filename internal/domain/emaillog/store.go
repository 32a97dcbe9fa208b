package emaillog

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wipetrace/internal/domain/enums"
)

const logColumns = `id, deletion_request_id, COALESCE(template_id::text, ''), to_email, from_email, subject, body,
    status, COALESCE(provider, ''), COALESCE(provider_message_id, ''), COALESCE(error_message, ''),
    created_at, sent_at, delivered_at, opened_at, clicked_at, bounced_at`

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) CreateLog(ctx context.Context, l EmailLog) (EmailLog, error) {
	row := s.DB.QueryRow(ctx, `
    INSERT INTO email_logs (deletion_request_id, template_id, to_email, from_email, subject, body, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING `+logColumns+`
  `, l.DeletionRequestID, nullIfEmpty(l.TemplateID), l.ToEmail, l.FromEmail, l.Subject, l.Body, enums.EmailPending)
	return scanLog(row)
}

func (s *Store) MarkLogSent(ctx context.Context, id, provider, messageID string, at time.Time) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE email_logs
    SET status = 'SENT', provider = $2, provider_message_id = $3, sent_at = $4, error_message = NULL
    WHERE id = $1
  `, id, provider, nullIfEmpty(messageID), at)
	return err
}

func (s *Store) MarkLogFailed(ctx context.Context, id, provider, errorMessage string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE email_logs SET status = 'FAILED', provider = $2, error_message = $3
    WHERE id = $1
  `, id, nullIfEmpty(provider), errorMessage)
	return err
}

func (s *Store) FirstForRequest(ctx context.Context, deletionRequestID string) (EmailLog, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+logColumns+`
    FROM email_logs
    WHERE deletion_request_id = $1
    ORDER BY COALESCE(sent_at, created_at) ASC
    LIMIT 1
  `, deletionRequestID)
	return scanLog(row)
}

func (s *Store) ListForRequest(ctx context.Context, deletionRequestID string) ([]EmailLog, error) {
	return s.queryLogs(ctx, `
    SELECT `+logColumns+`
    FROM email_logs
    WHERE deletion_request_id = $1
    ORDER BY created_at DESC
  `, deletionRequestID)
}

func (s *Store) FindByProviderMessageID(ctx context.Context, messageID string) ([]EmailLog, error) {
	return s.queryLogs(ctx, `SELECT `+logColumns+` FROM email_logs WHERE provider_message_id = $1`, messageID)
}

// UpdateEventStatus sets status and stamps the event's timestamp column if it
// is still empty.
func (s *Store) UpdateEventStatus(ctx context.Context, id string, status enums.EmailStatus, event EventType, at time.Time) error {
	column := event.timestampColumn()
	_, err := s.DB.Exec(ctx, `
    UPDATE email_logs SET status = $2, `+column+` = COALESCE(`+column+`, $3)
    WHERE id = $1
  `, id, status, at)
	return err
}

func (s *Store) LogStatistics(ctx context.Context, deletionRequestID string) (Statistics, error) {
	var st Statistics
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1),
           COUNT(1) FILTER (WHERE sent_at IS NOT NULL),
           COUNT(1) FILTER (WHERE delivered_at IS NOT NULL),
           COUNT(1) FILTER (WHERE status = 'FAILED'),
           COUNT(1) FILTER (WHERE status = 'BOUNCED'),
           COUNT(1) FILTER (WHERE opened_at IS NOT NULL)
    FROM email_logs
    WHERE ($1 = '' OR deletion_request_id::text = $1)
  `, deletionRequestID).Scan(&st.Total, &st.Sent, &st.Delivered, &st.Failed, &st.Bounced, &st.Opened)
	if err != nil {
		return Statistics{}, err
	}
	st.DeliveryRate = percent(st.Delivered, st.Total)
	st.OpenRate = percent(st.Opened, st.Sent)
	return st, nil
}

func percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

func (s *Store) queryLogs(ctx context.Context, query string, args ...any) ([]EmailLog, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EmailLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLog(row pgx.Row) (EmailLog, error) {
	var l EmailLog
	err := row.Scan(&l.ID, &l.DeletionRequestID, &l.TemplateID, &l.ToEmail, &l.FromEmail, &l.Subject, &l.Body,
		&l.Status, &l.Provider, &l.ProviderMessageID, &l.ErrorMessage,
		&l.CreatedAt, &l.SentAt, &l.DeliveredAt, &l.OpenedAt, &l.ClickedAt, &l.BouncedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return EmailLog{}, ErrNotFound
	}
	return l, err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
