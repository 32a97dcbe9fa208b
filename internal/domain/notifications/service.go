package notifications

import (
	"context"
	"html"
	"html/template"
	"strings"

	"go.uber.org/zap"

	"wipetrace/internal/domain/dispatch"
)

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Input is one notification to store and email. HTML, when set, replaces
// the escaped Message as the card body.
type Input struct {
	UserID  string
	Type    Type
	Title   string
	Message string
	HTML    template.HTML
	Link    string
}

type Service struct {
	store    StoreAPI
	sender   dispatch.Sender
	events   EventPublisher
	from     string
	fromName string
	replyTo  string
	log      *zap.Logger
}

// New builds the service. from, fromName and replyTo are the same sender
// identity the dispatcher uses for outgoing letters.
func New(store StoreAPI, sender dispatch.Sender, events EventPublisher, from, fromName, replyTo string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, sender: sender, events: events, from: from, fromName: fromName, replyTo: replyTo, log: log}
}

// Notify stores the notification and then emails it. Email problems are
// logged, never returned: the stored row is the source of truth.
func (s *Service) Notify(ctx context.Context, in Input) (Notification, error) {
	if _, ok := accents[in.Type]; !ok {
		in.Type = TypeInfo
	}
	n, err := s.store.CreateNotification(ctx, Notification{
		UserID:  in.UserID,
		Type:    in.Type,
		Title:   in.Title,
		Message: in.Message,
	})
	if err != nil {
		return Notification{}, err
	}

	s.email(ctx, in)
	if s.events != nil {
		if err := s.events.Publish(ctx, EventCreated, n); err != nil {
			s.log.Warn("publish notification event failed", zap.Error(err))
		}
	}
	return n, nil
}

func (s *Service) email(ctx context.Context, in Input) {
	if s.sender == nil {
		return
	}
	logger := s.log.With(zap.String("user_id", in.UserID))
	to, err := s.store.UserEmail(ctx, in.UserID)
	if err != nil {
		logger.Warn("notification email lookup failed", zap.Error(err))
		return
	}
	if to == "" {
		return
	}

	body := in.HTML
	if body == "" {
		body = template.HTML(strings.ReplaceAll(html.EscapeString(in.Message), "\n", "<br>"))
	}
	card, err := RenderCard(in.Type, in.Title, body, in.Link)
	if err != nil {
		logger.Warn("notification card render failed", zap.Error(err))
		return
	}
	if _, err := s.sender.Send(ctx, dispatch.Message{
		To:       to,
		From:     s.from,
		FromName: s.fromName,
		ReplyTo:  s.replyTo,
		Subject:  in.Title,
		HTML:     card,
		Text:     in.Message,
	}); err != nil {
		logger.Warn("notification email send failed", zap.Error(err))
	}
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) (ListResult, error) {
	items, err := s.store.ListNotifications(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return ListResult{}, err
	}
	total, unread, err := s.store.CountNotifications(ctx, userID)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Notifications: items, Total: total, Unread: unread}, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.store.MarkRead(ctx, userID, notificationID)
}
