package emaillog

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Service struct {
	store StoreAPI
	log   *zap.Logger
}

func NewService(store StoreAPI, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

// Begin records an attempt as PENDING before it is handed to a transport.
func (s *Service) Begin(ctx context.Context, l EmailLog) (EmailLog, error) {
	return s.store.CreateLog(ctx, l)
}

func (s *Service) MarkSent(ctx context.Context, id, provider, messageID string, at time.Time) error {
	return s.store.MarkLogSent(ctx, id, provider, messageID, at)
}

func (s *Service) MarkFailed(ctx context.Context, id, provider, errorMessage string) error {
	return s.store.MarkLogFailed(ctx, id, provider, errorMessage)
}

func (s *Service) FirstForRequest(ctx context.Context, deletionRequestID string) (EmailLog, error) {
	return s.store.FirstForRequest(ctx, deletionRequestID)
}

func (s *Service) ListForRequest(ctx context.Context, deletionRequestID string) ([]EmailLog, error) {
	logs, err := s.store.ListForRequest(ctx, deletionRequestID)
	if logs == nil {
		logs = []EmailLog{}
	}
	return logs, err
}

// ApplyEvent folds a provider event into every log carrying messageID and
// returns how many logs changed. Unknown message ids are not an error.
func (s *Service) ApplyEvent(ctx context.Context, messageID string, event EventType, at time.Time) (int, error) {
	logs, err := s.store.FindByProviderMessageID(ctx, NormalizeMessageID(messageID))
	if err != nil {
		return 0, err
	}
	if len(logs) == 0 {
		s.log.Debug("webhook event for unknown message", zap.String("message_id", messageID), zap.String("event", string(event)))
		return 0, nil
	}
	updated := 0
	for _, l := range logs {
		next := NextStatus(l.Status, event)
		if err := s.store.UpdateEventStatus(ctx, l.ID, next, event, at); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

func (s *Service) Statistics(ctx context.Context, deletionRequestID string) (Statistics, error) {
	return s.store.LogStatistics(ctx, deletionRequestID)
}
