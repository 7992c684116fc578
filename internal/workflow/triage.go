// Package workflow runs the background work triggered by domain events.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/JoshiAarya/ai-ticket-app/internal/events"
	"github.com/JoshiAarya/ai-ticket-app/internal/models"
	"github.com/JoshiAarya/ai-ticket-app/internal/notify"
	"github.com/JoshiAarya/ai-ticket-app/internal/repository"
	"github.com/JoshiAarya/ai-ticket-app/internal/triage"
	"github.com/JoshiAarya/ai-ticket-app/pkg/metrics"
)

var ErrTicketNotFound = errors.New("ticket not found")

// errSkip ends a step without error and marks it skipped in the report.
var errSkip = errors.New("skipped")

const (
	StepFetchTicket         = "fetch-ticket"
	StepMarkTodo            = "mark-todo"
	StepAIProcessing        = "ai-processing"
	StepApplyClassification = "apply-classification"
	StepAssignModerator     = "assign-moderator"
	StepSendNotification    = "send-email-notification"
)

type Result string

const (
	Succeeded Result = "succeeded"
	Partial   Result = "partial"
	Failed    Result = "failed"
)

type StepReport struct {
	Name     string `json:"name"`
	Attempts int    `json:"attempts"`
	Skipped  bool   `json:"skipped,omitempty"`
	Err      string `json:"error,omitempty"`
}

// Outcome is the tagged result of one triage run.
type Outcome struct {
	TicketID   string
	Result     Result
	Steps      []StepReport
	Err        error
	Fallback   bool
	AssigneeID string
	Notified   bool
}

func (o *Outcome) degrade() {
	if o.Result == Succeeded {
		o.Result = Partial
	}
}

func (o *Outcome) fail(err error) Outcome {
	o.Result = Failed
	o.Err = err
	return *o
}

// Step returns the report of the named step, if it ran.
func (o Outcome) Step(name string) (StepReport, bool) {
	for _, s := range o.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepReport{}, false
}

type Analyzer interface {
	Analyze(ctx context.Context, title, description string) (triage.Result, error)
}

type Config struct {
	StepMaxAttempts int
	StepBackoff     time.Duration
	NotifyPolicy    notify.Policy
}

type Triage struct {
	tickets  repository.TicketRepository
	users    repository.UserRepository
	analyzer Analyzer
	sender   notify.Sender
	cfg      Config
	log      zerolog.Logger
	now      func() time.Time
}

func NewTriage(
	tickets repository.TicketRepository,
	users repository.UserRepository,
	analyzer Analyzer,
	sender notify.Sender,
	cfg Config,
	log zerolog.Logger,
) *Triage {
	if cfg.StepMaxAttempts < 1 {
		cfg.StepMaxAttempts = 2
	}
	if cfg.StepBackoff <= 0 {
		cfg.StepBackoff = 500 * time.Millisecond
	}
	if cfg.NotifyPolicy != notify.PolicyFail {
		cfg.NotifyPolicy = notify.PolicyLog
	}
	return &Triage{
		tickets:  tickets,
		users:    users,
		analyzer: analyzer,
		sender:   sender,
		cfg:      cfg,
		log:      log.With().Str("component", "workflow").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run triages one ticket. It is safe to run again for the same ticket:
// writes already made are detected and not repeated.
func (t *Triage) Run(ctx context.Context, ticketID string) Outcome {
	out := Outcome{TicketID: ticketID, Result: Succeeded}
	l := t.log.With().Str("ticket_id", ticketID).Logger()

	var ticket *models.Ticket
	err := t.runStep(ctx, l, &out, StepFetchTicket, func(ctx context.Context) error {
		tk, err := t.tickets.Get(ctx, ticketID)
		if err != nil {
			return err
		}
		if tk == nil {
			return events.Permanent(ErrTicketNotFound)
		}
		ticket = tk
		return nil
	})
	if err != nil {
		return out.fail(err)
	}

	err = t.runStep(ctx, l, &out, StepMarkTodo, func(ctx context.Context) error {
		return t.tickets.MarkTriageStarted(ctx, ticket.ID)
	})
	if err != nil {
		return out.fail(err)
	}

	if ticket.Status == models.StatusDone {
		l.Info().Msg("ticket already closed, skipping triage")
		for _, name := range []string{StepAIProcessing, StepApplyClassification, StepAssignModerator, StepSendNotification} {
			out.Steps = append(out.Steps, StepReport{Name: name, Skipped: true})
		}
		out.AssigneeID = ticket.AssigneeID()
		out.Notified = ticket.NotifiedAt != nil
		if out.AssigneeID == "" {
			out.degrade()
		}
		return out
	}

	skills, err := t.classify(ctx, l, &out, ticket)
	if err != nil {
		return out.fail(err)
	}

	var assignee *models.User
	err = t.runStep(ctx, l, &out, StepAssignModerator, func(ctx context.Context) error {
		if id := ticket.AssigneeID(); id != "" {
			u, err := t.users.GetByID(ctx, id)
			if err != nil {
				return err
			}
			assignee = u
			return errSkip
		}
		u, err := t.pickAssignee(ctx, skills)
		if err != nil {
			return err
		}
		id := ""
		if u != nil {
			id = u.ID
		}
		if err := t.tickets.SetAssignee(ctx, ticket.ID, id); err != nil {
			return err
		}
		assignee = u
		return nil
	})
	if err != nil {
		return out.fail(err)
	}
	if assignee == nil {
		l.Warn().Msg("no moderator or admin available, ticket left unassigned")
		out.degrade()
		return out
	}
	out.AssigneeID = assignee.ID

	if ticket.NotifiedAt != nil {
		out.Notified = true
		out.Steps = append(out.Steps, StepReport{Name: StepSendNotification, Skipped: true})
		return out
	}

	sent := false
	err = t.runStep(ctx, l, &out, StepSendNotification, func(ctx context.Context) error {
		if !sent {
			final, err := t.tickets.Get(ctx, ticket.ID)
			if err != nil {
				return err
			}
			if final == nil {
				final = ticket
			}
			if err := t.sender.Send(ctx, notify.TicketAssigned(final, assignee.Email)); err != nil {
				return err
			}
			sent = true
		}
		return t.tickets.MarkNotified(ctx, ticket.ID, t.now())
	})
	switch {
	case err == nil:
		out.Notified = true
	case t.cfg.NotifyPolicy == notify.PolicyFail:
		return out.fail(err)
	default:
		l.Error().Err(err).Str("to", assignee.Email).Msg("assignment email failed")
		out.Notified = sent
		out.degrade()
	}
	return out
}

// classify runs the AI steps and returns the skills used for assignment.
func (t *Triage) classify(ctx context.Context, l zerolog.Logger, out *Outcome, ticket *models.Ticket) ([]string, error) {
	if ticket.Status != models.StatusTodo && len(ticket.RelatedSkills) > 0 {
		out.Steps = append(out.Steps,
			StepReport{Name: StepAIProcessing, Skipped: true},
			StepReport{Name: StepApplyClassification, Skipped: true},
		)
		return ticket.RelatedSkills, nil
	}

	var res triage.Result
	err := t.runStep(ctx, l, out, StepAIProcessing, func(ctx context.Context) error {
		r, err := t.analyzer.Analyze(ctx, ticket.Title, ticket.Description)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Fallback {
		out.Fallback = true
		out.degrade()
	}

	err = t.runStep(ctx, l, out, StepApplyClassification, func(ctx context.Context) error {
		applied, err := t.tickets.ApplyClassification(ctx, ticket.ID, res.Classification())
		if err != nil {
			return err
		}
		if !applied {
			l.Info().Str("status", string(ticket.Status)).Msg("ticket left TODO before classification, not overwritten")
			return errSkip
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res.RelatedSkills, nil
}

func (t *Triage) pickAssignee(ctx context.Context, skills []string) (*models.User, error) {
	if len(skills) > 0 {
		u, err := t.users.FindModeratorBySkills(ctx, skills)
		if err != nil {
			return nil, fmt.Errorf("find moderator: %w", err)
		}
		if u != nil {
			return u, nil
		}
	}
	u, err := t.users.FirstAdmin(ctx)
	if err != nil {
		return nil, fmt.Errorf("find admin: %w", err)
	}
	return u, nil
}

func (t *Triage) runStep(ctx context.Context, l zerolog.Logger, out *Outcome, name string, fn func(context.Context) error) error {
	start := time.Now()
	rep := StepReport{Name: name}
	var err error
	for attempt := 1; attempt <= t.cfg.StepMaxAttempts; attempt++ {
		rep.Attempts = attempt
		err = fn(ctx)
		if err == nil || errors.Is(err, errSkip) || events.IsPermanent(err) || ctx.Err() != nil {
			break
		}
		l.Warn().Err(err).Str("step", name).Int("attempt", attempt).Msg("triage step failed")
		if attempt < t.cfg.StepMaxAttempts {
			select {
			case <-ctx.Done():
			case <-time.After(t.cfg.StepBackoff):
			}
		}
	}
	metrics.TriageStepDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if errors.Is(err, errSkip) {
		rep.Skipped = true
		err = nil
	}
	if err != nil {
		rep.Err = err.Error()
		err = fmt.Errorf("%s: %w", name, err)
	}
	out.Steps = append(out.Steps, rep)
	return err
}

// HandleTicketCreated handles ticket/created. The outcome is reported, never
// returned, so a failed run is not redelivered.
func (t *Triage) HandleTicketCreated(ctx context.Context, ev events.Event) error {
	var p events.TicketCreatedPayload
	if err := events.Decode(ev, &p); err != nil {
		return err
	}
	if p.TicketID == "" {
		return events.Permanent(errors.New("ticket/created without ticketId"))
	}

	out := t.Run(ctx, p.TicketID)
	metrics.TriageOutcomes.WithLabelValues(string(out.Result)).Inc()

	e := t.log.Info()
	if out.Result == Failed {
		e = t.log.Error().Err(out.Err)
	}
	e.Str("event_id", ev.ID).
		Str("ticket_id", out.TicketID).
		Str("result", string(out.Result)).
		Bool("fallback", out.Fallback).
		Str("assignee_id", out.AssigneeID).
		Bool("notified", out.Notified).
		Msg("ticket triage finished")
	return nil
}
