package dispatch

import "time"

// Config is the sender identity and pacing the dispatcher is built with.
// SendTimeout is the per-transport limit the Chain applies.
type Config struct {
	FromEmail   string
	FromName    string
	ReplyTo     string
	SendTimeout time.Duration
	Interval    time.Duration
}

type Message struct {
	To       string
	From     string
	FromName string
	ReplyTo  string
	Subject  string
	HTML     string
	Text     string
}

type Receipt struct {
	Provider  string
	MessageID string
}

// Result is the outcome of one dispatch. A transport failure is reported
// here with Success=false rather than as an error.
type Result struct {
	RequestID  string `json:"requestId"`
	Success    bool   `json:"success"`
	MessageID  string `json:"messageId,omitempty"`
	Provider   string `json:"provider,omitempty"`
	EmailLogID string `json:"emailLogId,omitempty"`
	Error      string `json:"error,omitempty"`
}

type BulkResult struct {
	Results      []Result `json:"results"`
	SuccessCount int      `json:"successCount"`
	FailureCount int      `json:"failureCount"`
}

type Preview struct {
	RequestID  string `json:"requestId"`
	To         string `json:"to"`
	From       string `json:"from"`
	ReplyTo    string `json:"replyTo,omitempty"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	PlainText  string `json:"plainText"`
	TemplateID string `json:"templateId,omitempty"`
	Source     string `json:"source"`
}
