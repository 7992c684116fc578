package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/JoshiAarya/ai-ticket-app/internal/events"
	"github.com/JoshiAarya/ai-ticket-app/internal/models"
	"github.com/JoshiAarya/ai-ticket-app/internal/repository"
)

type TicketService struct {
	tickets repository.TicketRepository
	events  events.Publisher
	log     zerolog.Logger
}

func NewTicketService(tickets repository.TicketRepository, pub events.Publisher, log zerolog.Logger) *TicketService {
	return &TicketService{tickets: tickets, events: pub, log: log}
}

func (s *TicketService) Create(ctx context.Context, caller models.Identity, title, description string) (*models.Ticket, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return nil, fmt.Errorf("%w: title and description are required", ErrValidation)
	}

	t := &models.Ticket{
		Title:         title,
		Description:   description,
		Status:        models.StatusTodo,
		Priority:      models.PriorityMedium,
		RelatedSkills: []string{},
		CreatedBy:     caller.UserID,
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	evID, err := s.events.Publish(ctx, events.TicketCreated, events.TicketCreatedPayload{TicketID: t.ID})
	if err != nil {
		return nil, fmt.Errorf("publish ticket/created for %s: %w", t.ID, err)
	}
	s.log.Info().Str("ticket_id", t.ID).Str("event_id", evID).Msg("ticket created")
	return t, nil
}

// List returns tickets visible to caller, newest first.
func (s *TicketService) List(ctx context.Context, caller models.Identity, limit, offset int) ([]models.Ticket, error) {
	f := repository.TicketFilter{Limit: limit, Offset: offset}
	if !canSeeAllTickets(caller.Role) {
		f.CreatedBy = caller.UserID
	}
	items, err := s.tickets.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return items, nil
}

// Get hides tickets the caller may not read behind ErrNotFound.
func (s *TicketService) Get(ctx context.Context, caller models.Identity, id string) (*models.Ticket, error) {
	t, err := s.tickets.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	if t == nil || !canReadTicket(caller, t) {
		return nil, ErrNotFound
	}
	return t, nil
}

// MarkDone closes a ticket. Closing an already closed ticket succeeds.
func (s *TicketService) MarkDone(ctx context.Context, caller models.Identity, id string) (*models.Ticket, error) {
	for attempt := 0; attempt < 3; attempt++ {
		t, err := s.tickets.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get ticket: %w", err)
		}
		if t == nil {
			return nil, ErrNotFound
		}
		if !canCloseTicket(caller, t) {
			if !canReadTicket(caller, t) {
				return nil, ErrNotFound
			}
			return nil, ErrForbidden
		}
		if t.Status == models.StatusDone {
			return t, nil
		}
		if !t.Status.CanTransition(models.StatusDone) {
			return nil, fmt.Errorf("%w: cannot close a ticket in status %s", ErrConflict, t.Status)
		}

		moved, err := s.tickets.UpdateStatus(ctx, id, t.Status, models.StatusDone)
		if err != nil {
			return nil, fmt.Errorf("close ticket: %w", err)
		}
		if moved {
			s.log.Info().Str("ticket_id", id).Str("by", caller.UserID).Msg("ticket closed")
			return s.tickets.Get(ctx, id)
		}
		// status changed underneath us (triage moved it); re-read and retry
	}
	return nil, fmt.Errorf("%w: ticket %s kept changing", ErrConflict, id)
}

type Summary struct {
	ByStatus         []models.StatusCount `json:"byStatus"`
	OpenHighPriority int                  `json:"openHighPriority"`
}

func (s *TicketService) Summary(ctx context.Context, caller models.Identity) (*Summary, error) {
	if !canViewReports(caller.Role) {
		return nil, ErrForbidden
	}
	by, err := s.tickets.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	high, err := s.tickets.CountOpenByPriority(ctx, models.PriorityHigh)
	if err != nil {
		return nil, fmt.Errorf("count open high: %w", err)
	}
	return &Summary{ByStatus: by, OpenHighPriority: high}, nil
}
