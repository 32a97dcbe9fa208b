package emailhandler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"wipetrace/internal/domain/emaillog"
	"wipetrace/internal/platform/logger"
	"wipetrace/internal/platform/metrics"
	"wipetrace/internal/transport/http/api"
	"wipetrace/internal/transport/http/middleware"
	"wipetrace/internal/transport/http/shared"
)

const SignatureHeader = "X-Webhook-Signature"

// providerEvent is the union of the payload shapes the webhook accepts: the
// generic {type, messageId} form, the {type, data:{email_id}} form and
// SendGrid's {event, sg_message_id} array items.
type providerEvent struct {
	Type        string          `json:"type"`
	Event       string          `json:"event"`
	MessageID   string          `json:"messageId"`
	SGMessageID string          `json:"sg_message_id"`
	Timestamp   json.RawMessage `json:"timestamp"`
	Data        struct {
		EmailID string `json:"email_id"`
	} `json:"data"`
}

func (e providerEvent) name() string {
	if e.Type != "" {
		return e.Type
	}
	return e.Event
}

func (e providerEvent) messageID() string {
	switch {
	case e.MessageID != "":
		return e.MessageID
	case e.Data.EmailID != "":
		return e.Data.EmailID
	default:
		return e.SGMessageID
	}
}

// at reads unix seconds or an RFC3339 string, falling back to now.
func (e providerEvent) at(now time.Time) time.Time {
	raw := strings.Trim(strings.TrimSpace(string(e.Timestamp)), `"`)
	if raw == "" || raw == "null" {
		return now
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC()
	}
	return now
}

type webhookSummary struct {
	Received int `json:"received"`
	Matched  int `json:"matched"`
	Ignored  int `json:"ignored"`
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	log := logger.From(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	if h.WebhookSecret != "" && !validSignature(h.WebhookSecret, body, r.Header.Get(SignatureHeader)) {
		log.Warn("email webhook signature mismatch")
		api.Fail(w, http.StatusUnauthorized, "invalid_signature", "invalid webhook signature", reqID)
		return
	}

	events, err := decodeEvents(body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid webhook payload", reqID)
		return
	}

	summary := webhookSummary{Received: len(events)}
	now := time.Now().UTC()
	for _, evt := range events {
		kind, ok := emaillog.ParseEventType(evt.name())
		msgID := evt.messageID()
		if !ok || msgID == "" {
			summary.Ignored++
			metrics.ObserveWebhook(evt.name(), false)
			continue
		}
		updated, err := h.Logs.ApplyEvent(r.Context(), msgID, kind, evt.at(now))
		if err != nil {
			shared.Fail(w, r, err, "failed to process webhook")
			return
		}
		metrics.ObserveWebhook(string(kind), updated > 0)
		if updated > 0 {
			summary.Matched++
		} else {
			summary.Ignored++
		}
		log.Debug("email webhook event", zap.String("event", string(kind)), zap.String("message_id", msgID), zap.Int("updated", updated))
	}
	api.Success(w, summary, reqID)
}

func decodeEvents(body []byte) ([]providerEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var events []providerEvent
		err := json.Unmarshal(trimmed, &events)
		return events, err
	}
	var evt providerEvent
	if err := json.Unmarshal(trimmed, &evt); err != nil {
		return nil, err
	}
	return []providerEvent{evt}, nil
}

// Sign returns the hex HMAC-SHA256 the webhook expects for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret string, body []byte, header string) bool {
	got, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(header), "sha256="))
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
