package email

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"wipetrace/internal/domain/dispatch"
)

const (
	ProviderSendGrid = "sendgrid"

	defaultSendGridHost = "https://api.sendgrid.com"
	sendGridEndpoint    = "/v3/mail/send"
)

var ErrSendGridRejected = errors.New("sendgrid rejected message")

// SendGrid is the primary transport. The provider message id comes from the
// X-Message-Id response header and is what webhooks later report.
type SendGrid struct {
	APIKey string
	Host   string
}

func NewSendGrid(apiKey, host string) *SendGrid {
	if host == "" {
		host = defaultSendGridHost
	}
	return &SendGrid{APIKey: apiKey, Host: host}
}

func (s *SendGrid) Name() string { return ProviderSendGrid }

func (s *SendGrid) Send(ctx context.Context, msg dispatch.Message) (dispatch.Receipt, error) {
	req := sendgrid.GetRequest(s.APIKey, sendGridEndpoint, s.Host)
	req.Method = rest.Post
	req.Body = mail.GetRequestBody(buildSendGridMail(msg))

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return dispatch.Receipt{}, fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return dispatch.Receipt{}, fmt.Errorf("%w: status %d: %s", ErrSendGridRejected, resp.StatusCode, resp.Body)
	}
	return dispatch.Receipt{Provider: ProviderSendGrid, MessageID: headerValue(resp.Headers, "X-Message-Id")}, nil
}

func buildSendGridMail(msg dispatch.Message) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(msg.FromName, msg.From))
	m.Subject = msg.Subject
	if msg.ReplyTo != "" {
		m.SetReplyTo(mail.NewEmail("", msg.ReplyTo))
	}

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", msg.To))
	m.AddPersonalizations(p)

	if msg.Text != "" {
		m.AddContent(mail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		m.AddContent(mail.NewContent("text/html", msg.HTML))
	}
	return m
}

func headerValue(headers map[string][]string, key string) string {
	if v := http.Header(headers).Get(key); v != "" {
		return v
	}
	for k, v := range headers {
		if len(v) > 0 && http.CanonicalHeaderKey(k) == http.CanonicalHeaderKey(key) {
			return v[0]
		}
	}
	return ""
}
