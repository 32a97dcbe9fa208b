package emaillog

import (
	"context"
	"time"

	"wipetrace/internal/domain/enums"
)

type StoreAPI interface {
	CreateLog(ctx context.Context, log EmailLog) (EmailLog, error)
	MarkLogSent(ctx context.Context, id, provider, messageID string, at time.Time) error
	MarkLogFailed(ctx context.Context, id, provider, errorMessage string) error
	FirstForRequest(ctx context.Context, deletionRequestID string) (EmailLog, error)
	ListForRequest(ctx context.Context, deletionRequestID string) ([]EmailLog, error)
	FindByProviderMessageID(ctx context.Context, messageID string) ([]EmailLog, error)
	UpdateEventStatus(ctx context.Context, id string, status enums.EmailStatus, event EventType, at time.Time) error
	LogStatistics(ctx context.Context, deletionRequestID string) (Statistics, error)
}
