package notify

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
	"github.com/yuin/goldmark"

	"github.com/JoshiAarya/ai-ticket-app/internal/config"
	"github.com/JoshiAarya/ai-ticket-app/internal/models"
	"github.com/JoshiAarya/ai-ticket-app/pkg/metrics"
)

// Message is an outgoing email. Body is markdown; it is sent as plain text
// with an HTML rendering attached as an alternative.
type Message struct {
	Kind    string
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

type Policy string

const (
	PolicyLog  Policy = "log"
	PolicyFail Policy = "fail"
)

func TicketAssigned(t *models.Ticket, to string) Message {
	return Message{
		Kind:    "ticket_assigned",
		To:      to,
		Subject: "Ticket Assigned",
		Body: fmt.Sprintf("A new ticket is assigned to you: **%s**\n\nPriority: %s\n\n%s",
			t.Title, t.Priority, t.HelpfulNotes),
	}
}

func Welcome(email string) Message {
	return Message{
		Kind:    "welcome",
		To:      email,
		Subject: "Welcome to AI Ticket Triage",
		Body:    "Welcome aboard. Your account **" + email + "** is ready, you can start opening tickets now.",
	}
}

// -----------------------------------------------------------------------------
// SMTP

type SMTPSender struct {
	from   string
	client *mail.Client
}

func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{from: cfg.From, client: c}, nil
}

func (s *SMTPSender) Send(ctx context.Context, m Message) (err error) {
	defer func() { record(m.Kind, err) }()

	msg, err := buildMsg(s.from, m)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", m.To, err)
	}
	return nil
}

func buildMsg(from string, m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Body)

	html, err := renderHTML(m.Body)
	if err != nil {
		return nil, err
	}
	msg.AddAlternativeString(mail.TypeTextHTML, html)
	return msg, nil
}

func renderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// -----------------------------------------------------------------------------
// Log

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	Log zerolog.Logger
}

func (s LogSender) Send(_ context.Context, m Message) error {
	s.Log.Info().
		Str("kind", m.Kind).
		Str("to", m.To).
		Str("subject", m.Subject).
		Msg("email (not sent, smtp disabled)")
	record(m.Kind, nil)
	return nil
}

func record(kind string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	metrics.EmailsSent.WithLabelValues(kind, outcome).Inc()
}
