package emaillog

import (
	"strings"

	"wipetrace/internal/domain/enums"
)

// EventType is a provider delivery event after alias normalisation.
type EventType string

const (
	EventDelivered EventType = "delivered"
	EventOpened    EventType = "opened"
	EventClicked   EventType = "clicked"
	EventBounced   EventType = "bounced"
)

var eventAliases = map[string]EventType{
	"delivered":       EventDelivered,
	"email.delivered": EventDelivered,
	"opened":          EventOpened,
	"open":            EventOpened,
	"email.opened":    EventOpened,
	"clicked":         EventClicked,
	"click":           EventClicked,
	"email.clicked":   EventClicked,
	"bounced":         EventBounced,
	"bounce":          EventBounced,
	"dropped":         EventBounced,
	"email.bounced":   EventBounced,
}

// ParseEventType maps a provider event name to an EventType. ok is false for
// events the service does not track.
func ParseEventType(raw string) (EventType, bool) {
	t, ok := eventAliases[strings.ToLower(strings.TrimSpace(raw))]
	return t, ok
}

func (e EventType) Status() enums.EmailStatus {
	switch e {
	case EventDelivered:
		return enums.EmailDelivered
	case EventOpened:
		return enums.EmailOpened
	case EventClicked:
		return enums.EmailClicked
	default:
		return enums.EmailBounced
	}
}

var progress = map[enums.EmailStatus]int{
	enums.EmailPending:   0,
	enums.EmailSent:      1,
	enums.EmailDelivered: 2,
	enums.EmailOpened:    3,
	enums.EmailClicked:   4,
}

// NextStatus folds an event into the current status. Engagement only moves
// forward, a bounce overrides anything short of a failure, and FAILED and
// BOUNCED are final.
func NextStatus(current enums.EmailStatus, e EventType) enums.EmailStatus {
	if current == enums.EmailFailed || current == enums.EmailBounced {
		return current
	}
	next := e.Status()
	if next == enums.EmailBounced {
		return next
	}
	if progress[next] > progress[current] {
		return next
	}
	return current
}

// timestampColumn is the email_logs column stamped the first time e is seen.
func (e EventType) timestampColumn() string {
	switch e {
	case EventDelivered:
		return "delivered_at"
	case EventOpened:
		return "opened_at"
	case EventClicked:
		return "clicked_at"
	default:
		return "bounced_at"
	}
}

// NormalizeMessageID strips the SendGrid filter suffix from an event's
// sg_message_id so it matches the X-Message-Id stored at send time.
func NormalizeMessageID(id string) string {
	id = strings.Trim(strings.TrimSpace(id), "<>")
	if i := strings.Index(id, "."); i > 0 {
		return id[:i]
	}
	return id
}
