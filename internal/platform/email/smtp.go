package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/go-mail/mail"
	"github.com/google/uuid"

	"wipetrace/internal/domain/dispatch"
)

const ProviderSMTP = "smtp"

// SMTP is the fallback transport. TLSMode is "auto" (STARTTLS when offered),
// "ssl" (implicit TLS) or "none".
type SMTP struct {
	Host        string
	Port        int
	User        string
	Pass        string
	TLSMode     string
	DialTimeout time.Duration
}

func NewSMTP(host string, port int, user, pass, tlsMode string) *SMTP {
	if tlsMode == "" {
		tlsMode = "auto"
	}
	return &SMTP{Host: host, Port: port, User: user, Pass: pass, TLSMode: tlsMode, DialTimeout: 10 * time.Second}
}

func (s *SMTP) Name() string { return ProviderSMTP }

// Send generates its own Message-ID so the attempt can be correlated with a
// bounce later. DialAndSend has no context, so ctx only bounds the wait.
func (s *SMTP) Send(ctx context.Context, msg dispatch.Message) (dispatch.Receipt, error) {
	id := uuid.NewString()
	m := buildMessage(msg, id, s.domain(msg.From))
	d := s.dialer()

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return dispatch.Receipt{}, fmt.Errorf("smtp send: %w", err)
		}
		return dispatch.Receipt{Provider: ProviderSMTP, MessageID: id}, nil
	case <-ctx.Done():
		return dispatch.Receipt{}, fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

func (s *SMTP) dialer() *mail.Dialer {
	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.Timeout = s.DialTimeout
	d.TLSConfig = &tls.Config{ServerName: s.Host, MinVersion: tls.VersionTLS12}
	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	}
	return d
}

func (s *SMTP) domain(from string) string {
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		return from[at+1:]
	}
	return s.Host
}

func buildMessage(msg dispatch.Message, id, domain string) *mail.Message {
	m := mail.NewMessage()
	m.SetAddressHeader("From", msg.From, msg.FromName)
	m.SetHeader("To", msg.To)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", id, domain))

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}
	return m
}
