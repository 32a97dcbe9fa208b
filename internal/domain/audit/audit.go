package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"wipetrace/internal/requestctx"
)

const (
	ActionRequestCreated = "request_created"
	ActionRequestUpdated = "request_updated"
	ActionEmailSent      = "email_sent"
	ActionFollowUpSent   = "follow_up_sent"
)

const EntityDeletionRequest = "deletion_request"

// Entry is one append-only audit row. OldValues and NewValues are marshalled
// to JSON as given.
type Entry struct {
	ID                string          `json:"id,omitempty"`
	DeletionRequestID string          `json:"deletionRequestId,omitempty"`
	UserID            string          `json:"userId,omitempty"`
	Action            string          `json:"action"`
	Entity            string          `json:"entity"`
	EntityID          string          `json:"entityId"`
	OldValues         any             `json:"-"`
	NewValues         any             `json:"-"`
	OldJSON           json.RawMessage `json:"oldValues,omitempty"`
	NewJSON           json.RawMessage `json:"newValues,omitempty"`
	RequestID         string          `json:"requestId,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// Execer is satisfied by both *pgxpool.Pool and pgx.Tx so audit rows can be
// written inside the caller's transaction.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Service struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) Record(ctx context.Context, entry Entry) error {
	return Write(ctx, s.DB, entry)
}

// Write inserts entry through db. The HTTP request id is taken from ctx when
// the entry does not carry one.
func Write(ctx context.Context, db Execer, entry Entry) error {
	oldJSON, err := marshalOptional(entry.OldValues)
	if err != nil {
		return err
	}
	newJSON, err := marshalOptional(entry.NewValues)
	if err != nil {
		return err
	}
	if entry.Entity == "" {
		entry.Entity = EntityDeletionRequest
	}
	if entry.EntityID == "" {
		entry.EntityID = entry.DeletionRequestID
	}
	if entry.RequestID == "" {
		entry.RequestID = requestctx.GetRequestID(ctx)
	}

	_, err = db.Exec(ctx, `
    INSERT INTO audit_logs (deletion_request_id, user_id, action, entity, entity_id, old_values, new_values, request_id)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, nullIfEmpty(entry.DeletionRequestID), nullIfEmpty(entry.UserID), entry.Action, entry.Entity, entry.EntityID, oldJSON, newJSON, nullIfEmpty(entry.RequestID))
	return err
}

func (s *Service) ListForRequest(ctx context.Context, deletionRequestID string, limit int) ([]Entry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, COALESCE(deletion_request_id::text, ''), COALESCE(user_id::text, ''), action, entity, entity_id,
           old_values, new_values, COALESCE(request_id, ''), created_at
    FROM audit_logs
    WHERE deletion_request_id = $1
    ORDER BY created_at DESC
    LIMIT $2
  `, deletionRequestID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.DeletionRequestID, &e.UserID, &e.Action, &e.Entity, &e.EntityID,
			&e.OldJSON, &e.NewJSON, &e.RequestID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func marshalOptional(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
