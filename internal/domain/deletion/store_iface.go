package deletion

import (
	"context"
	"time"

	"wipetrace/internal/domain/audit"
	"wipetrace/internal/domain/enums"
)

type StoreAPI interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	// CreateRequest persists req and entry in one transaction.
	CreateRequest(ctx context.Context, req DeletionRequest, entry audit.Entry) (DeletionRequest, error)
	GetRequest(ctx context.Context, id string) (DeletionRequest, error)
	// UpdateRequest applies patch only while the row still has status
	// expected (any status when expected is empty) and writes entry in the
	// same transaction. It returns ErrStateConflict when no row matched.
	UpdateRequest(ctx context.Context, id string, expected enums.RequestStatus, patch Patch, entry audit.Entry) (DeletionRequest, error)
	ListRequests(ctx context.Context, filter Filter, limit, offset int) ([]DeletionRequest, int, error)
	PendingUnsent(ctx context.Context, limit int) ([]DeletionRequest, error)
	FollowUpCandidates(ctx context.Context, sentBefore time.Time, maxEmails, limit int) ([]DeletionRequest, error)
	OverdueCandidates(ctx context.Context, sentBefore time.Time, limit int) ([]DeletionRequest, error)
	StatusCounts(ctx context.Context, userID string) (map[enums.RequestStatus]int, float64, error)
	MonthlyTrends(ctx context.Context, userID string, since time.Time) ([]MonthlyTrend, error)
	ActiveUserSummaries(ctx context.Context) ([]UserSummary, error)
}
