package deletion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wipetrace/internal/domain/audit"
	"wipetrace/internal/domain/enums"
	"wipetrace/internal/platform/crypto"
)

const requestColumns = `dr.id, dr.user_id, dr.company_id, COALESCE(c.name, ''), dr.jurisdiction, dr.request_type,
    dr.status, dr.priority, dr.requestor_name, dr.requestor_email, dr.requestor_phone, dr.requestor_address,
    dr.emails_sent, dr.response_received, dr.cost::float8, COALESCE(dr.notes, ''), COALESCE(dr.internal_notes, ''),
    dr.created_at, dr.updated_at, dr.sent_at, dr.acknowledged_at, dr.completed_at, dr.estimated_completion,
    dr.actual_completion, dr.last_email_sent`

const requestFrom = ` FROM deletion_requests dr LEFT JOIN companies c ON c.id = dr.company_id`

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists deletion requests. Requestor phone and address are sealed
// with Cipher before they reach the database.
type Store struct {
	DB     *pgxpool.Pool
	Cipher *crypto.FieldCipher
}

func NewStore(db *pgxpool.Pool, cipher *crypto.FieldCipher) *Store {
	return &Store{DB: db, Cipher: cipher}
}

func (s *Store) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)", userID).Scan(&exists)
	return exists, err
}

func (s *Store) CreateRequest(ctx context.Context, req DeletionRequest, entry audit.Entry) (DeletionRequest, error) {
	phone, err := s.Cipher.Seal(req.RequestorPhone)
	if err != nil {
		return DeletionRequest{}, err
	}
	address, err := s.Cipher.Seal(req.RequestorAddress)
	if err != nil {
		return DeletionRequest{}, err
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return DeletionRequest{}, err
	}
	defer tx.Rollback(ctx)

	var id string
	if err := tx.QueryRow(ctx, `
    INSERT INTO deletion_requests (user_id, company_id, jurisdiction, request_type, status, priority,
      requestor_name, requestor_email, requestor_phone, requestor_address, cost, notes, estimated_completion, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
    RETURNING id
  `, req.UserID, req.CompanyID, req.Jurisdiction, req.RequestType, req.Status, req.Priority,
		req.RequestorName, req.RequestorEmail, phone, address, req.Cost, nullIfEmpty(req.Notes),
		req.EstimatedCompletion, req.CreatedAt).Scan(&id); err != nil {
		return DeletionRequest{}, err
	}

	entry.DeletionRequestID = id
	if err := audit.Write(ctx, tx, entry); err != nil {
		return DeletionRequest{}, err
	}

	created, err := s.getRequest(ctx, tx, id)
	if err != nil {
		return DeletionRequest{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return DeletionRequest{}, err
	}
	return created, nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (DeletionRequest, error) {
	return s.getRequest(ctx, s.DB, id)
}

func (s *Store) getRequest(ctx context.Context, q querier, id string) (DeletionRequest, error) {
	row := q.QueryRow(ctx, "SELECT "+requestColumns+requestFrom+" WHERE dr.id = $1", id)
	return s.scanRequest(row)
}

func (s *Store) UpdateRequest(ctx context.Context, id string, expected enums.RequestStatus, patch Patch, entry audit.Entry) (DeletionRequest, error) {
	query, args := buildUpdate(id, expected, patch)

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return DeletionRequest{}, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return DeletionRequest{}, err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM deletion_requests WHERE id = $1)", id).Scan(&exists); err != nil {
			return DeletionRequest{}, err
		}
		if !exists {
			return DeletionRequest{}, ErrNotFound
		}
		return DeletionRequest{}, ErrStateConflict
	}

	entry.DeletionRequestID = id
	if err := audit.Write(ctx, tx, entry); err != nil {
		return DeletionRequest{}, err
	}

	updated, err := s.getRequest(ctx, tx, id)
	if err != nil {
		return DeletionRequest{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return DeletionRequest{}, err
	}
	return updated, nil
}

func buildUpdate(id string, expected enums.RequestStatus, p Patch) (string, []any) {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if p.Status != nil {
		set("status", *p.Status)
	}
	if p.Notes != nil {
		set("notes", *p.Notes)
	}
	if p.InternalNotes != nil {
		set("internal_notes", *p.InternalNotes)
	}
	if p.ResponseReceived != nil {
		set("response_received", *p.ResponseReceived)
	}
	if p.SentAt != nil {
		set("sent_at", *p.SentAt)
	}
	if p.AcknowledgedAt != nil {
		set("acknowledged_at", *p.AcknowledgedAt)
	}
	if p.CompletedAt != nil {
		set("completed_at", *p.CompletedAt)
	}
	if p.ActualCompletion != nil {
		set("actual_completion", *p.ActualCompletion)
	}
	if p.LastEmailSent != nil {
		set("last_email_sent", *p.LastEmailSent)
	}
	if p.IncrementEmailsSent {
		sets = append(sets, "emails_sent = emails_sent + 1")
	}

	query := "UPDATE deletion_requests SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	if expected != "" {
		args = append(args, expected)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	return query, args
}

func (s *Store) ListRequests(ctx context.Context, filter Filter, limit, offset int) ([]DeletionRequest, int, error) {
	where, args := buildFilter(filter)

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM deletion_requests dr"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + requestColumns + requestFrom + where +
		fmt.Sprintf(" ORDER BY dr.created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	out, err := s.queryRequests(ctx, query, append(args, limit, offset)...)
	return out, total, err
}

func buildFilter(filter Filter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.UserID != "" {
		add("dr.user_id = $%d", filter.UserID)
	}
	if filter.Status != nil {
		add("dr.status = $%d", *filter.Status)
	}
	if filter.Jurisdiction != nil {
		add("dr.jurisdiction = $%d", *filter.Jurisdiction)
	}
	if filter.RequestType != nil {
		add("dr.request_type = $%d", *filter.RequestType)
	}
	if filter.CompanyID != nil {
		add("dr.company_id = $%d", *filter.CompanyID)
	}
	if filter.DateFrom != nil {
		add("dr.created_at >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		add("dr.created_at <= $%d", *filter.DateTo)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *Store) PendingUnsent(ctx context.Context, limit int) ([]DeletionRequest, error) {
	return s.queryRequests(ctx, "SELECT "+requestColumns+requestFrom+`
    WHERE dr.status = 'PENDING' AND dr.sent_at IS NULL
    ORDER BY dr.priority = 'URGENT' DESC, dr.priority = 'HIGH' DESC, dr.created_at ASC
    LIMIT $1`, limit)
}

func (s *Store) FollowUpCandidates(ctx context.Context, sentBefore time.Time, maxEmails, limit int) ([]DeletionRequest, error) {
	return s.queryRequests(ctx, "SELECT "+requestColumns+requestFrom+`
    WHERE dr.status = 'SENT' AND dr.sent_at <= $1 AND dr.response_received = false AND dr.emails_sent < $2
      AND (dr.last_email_sent IS NULL OR dr.last_email_sent <= $1)
    ORDER BY dr.sent_at ASC
    LIMIT $3`, sentBefore, maxEmails, limit)
}

func (s *Store) OverdueCandidates(ctx context.Context, sentBefore time.Time, limit int) ([]DeletionRequest, error) {
	return s.queryRequests(ctx, "SELECT "+requestColumns+requestFrom+`
    WHERE dr.status = 'SENT' AND dr.sent_at <= $1 AND dr.response_received = false
    ORDER BY dr.sent_at ASC
    LIMIT $2`, sentBefore, limit)
}

func (s *Store) StatusCounts(ctx context.Context, userID string) (map[enums.RequestStatus]int, float64, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT status, COUNT(1), COALESCE(SUM(cost), 0)::float8
    FROM deletion_requests
    WHERE ($1 = '' OR user_id::text = $1)
    GROUP BY status
  `, userID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	counts := map[enums.RequestStatus]int{}
	var totalCost float64
	for rows.Next() {
		var status enums.RequestStatus
		var count int
		var cost float64
		if err := rows.Scan(&status, &count, &cost); err != nil {
			return nil, 0, err
		}
		counts[status] = count
		totalCost += cost
	}
	return counts, totalCost, rows.Err()
}

func (s *Store) MonthlyTrends(ctx context.Context, userID string, since time.Time) ([]MonthlyTrend, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT to_char(date_trunc('month', created_at), 'YYYY-MM'),
           COUNT(1),
           COUNT(1) FILTER (WHERE status = 'COMPLETED'),
           COUNT(1) FILTER (WHERE status IN ('FAILED', 'REJECTED')),
           COUNT(1) FILTER (WHERE status = 'PENDING')
    FROM deletion_requests
    WHERE created_at >= $1 AND ($2 = '' OR user_id::text = $2)
    GROUP BY 1
    ORDER BY 1
  `, since, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MonthlyTrend
	for rows.Next() {
		var t MonthlyTrend
		if err := rows.Scan(&t.Month, &t.Total, &t.Completed, &t.Failed, &t.Pending); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ActiveUserSummaries(ctx context.Context) ([]UserSummary, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT u.id, u.email, COALESCE(u.first_name, ''),
           COUNT(1),
           COUNT(1) FILTER (WHERE dr.status = 'PENDING'),
           COUNT(1) FILTER (WHERE dr.status = 'SENT'),
           COUNT(1) FILTER (WHERE dr.status = 'IN_PROGRESS'),
           COUNT(1) FILTER (WHERE dr.status = 'COMPLETED')
    FROM deletion_requests dr
    JOIN users u ON u.id = dr.user_id
    GROUP BY u.id, u.email, u.first_name
    HAVING COUNT(1) FILTER (WHERE dr.status IN ('PENDING', 'SENT', 'IN_PROGRESS')) > 0
    ORDER BY u.email
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserSummary
	for rows.Next() {
		var u UserSummary
		if err := rows.Scan(&u.UserID, &u.Email, &u.FirstName, &u.Total, &u.Pending, &u.Sent, &u.InProgress, &u.Completed); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]DeletionRequest, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeletionRequest
	for rows.Next() {
		req, err := s.scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *Store) scanRequest(row pgx.Row) (DeletionRequest, error) {
	var r DeletionRequest
	var phone, address []byte
	err := row.Scan(&r.ID, &r.UserID, &r.CompanyID, &r.CompanyName, &r.Jurisdiction, &r.RequestType,
		&r.Status, &r.Priority, &r.RequestorName, &r.RequestorEmail, &phone, &address,
		&r.EmailsSent, &r.ResponseReceived, &r.Cost, &r.Notes, &r.InternalNotes,
		&r.CreatedAt, &r.UpdatedAt, &r.SentAt, &r.AcknowledgedAt, &r.CompletedAt, &r.EstimatedCompletion,
		&r.ActualCompletion, &r.LastEmailSent)
	if errors.Is(err, pgx.ErrNoRows) {
		return DeletionRequest{}, ErrNotFound
	}
	if err != nil {
		return DeletionRequest{}, err
	}
	if r.RequestorPhone, err = s.Cipher.Open(phone); err != nil {
		return DeletionRequest{}, fmt.Errorf("open requestor phone: %w", err)
	}
	if r.RequestorAddress, err = s.Cipher.Open(address); err != nil {
		return DeletionRequest{}, fmt.Errorf("open requestor address: %w", err)
	}
	return r, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
