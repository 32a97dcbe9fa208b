package emaillog

import (
	"time"

	"wipetrace/internal/domain/enums"
)

type EmailLog struct {
	ID                string            `json:"id"`
	DeletionRequestID string            `json:"deletionRequestId"`
	TemplateID        string            `json:"templateId,omitempty"`
	ToEmail           string            `json:"toEmail"`
	FromEmail         string            `json:"fromEmail"`
	Subject           string            `json:"subject"`
	Body              string            `json:"body"`
	Status            enums.EmailStatus `json:"status"`
	Provider          string            `json:"provider,omitempty"`
	ProviderMessageID string            `json:"providerMessageId,omitempty"`
	ErrorMessage      string            `json:"errorMessage,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	SentAt            *time.Time        `json:"sentAt,omitempty"`
	DeliveredAt       *time.Time        `json:"deliveredAt,omitempty"`
	OpenedAt          *time.Time        `json:"openedAt,omitempty"`
	ClickedAt         *time.Time        `json:"clickedAt,omitempty"`
	BouncedAt         *time.Time        `json:"bouncedAt,omitempty"`
}

type Statistics struct {
	Total        int `json:"totalEmails"`
	Sent         int `json:"sentEmails"`
	Delivered    int `json:"deliveredEmails"`
	Failed       int `json:"failedEmails"`
	Bounced      int `json:"bouncedEmails"`
	Opened       int `json:"openedEmails"`
	DeliveryRate int `json:"deliveryRate"`
	OpenRate     int `json:"openRate"`
}
