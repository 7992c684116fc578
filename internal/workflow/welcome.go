package workflow

import (
	"context"
	"errors"

	"github.com/JoshiAarya/ai-ticket-app/internal/events"
	"github.com/JoshiAarya/ai-ticket-app/internal/notify"
)

// Welcome mails new accounts on user/signup. Send errors are returned so the
// event is retried.
type Welcome struct {
	sender notify.Sender
}

func NewWelcome(sender notify.Sender) *Welcome { return &Welcome{sender: sender} }

func (w *Welcome) Handle(ctx context.Context, ev events.Event) error {
	var p events.UserSignupPayload
	if err := events.Decode(ev, &p); err != nil {
		return err
	}
	if p.Email == "" {
		return events.Permanent(errors.New("user/signup without email"))
	}
	return w.sender.Send(ctx, notify.Welcome(p.Email))
}

// Handlers maps event names to their handlers for the event worker.
func Handlers(t *Triage, w *Welcome) map[string]events.Handler {
	return map[string]events.Handler{
		events.TicketCreated: events.HandlerFunc(t.HandleTicketCreated),
		events.UserSignup:    w,
	}
}
