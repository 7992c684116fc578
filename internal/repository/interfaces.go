package repository

import (
	"context"
	"errors"
	"time"

	"github.com/JoshiAarya/ai-ticket-app/internal/models"
)

// ErrDuplicate is returned when a create would violate a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

// Lookups return (nil, nil) when no row matches.

type TicketRepository interface {
	Create(ctx context.Context, t *models.Ticket) error
	Get(ctx context.Context, id string) (*models.Ticket, error)
	List(ctx context.Context, f TicketFilter) ([]models.Ticket, error)

	// MarkTriageStarted records a triage attempt without touching the status.
	MarkTriageStarted(ctx context.Context, id string) error
	// ApplyClassification writes the triage result and moves the ticket to
	// IN_PROGRESS. It only applies while the ticket is still TODO.
	ApplyClassification(ctx context.Context, id string, c models.Classification) (bool, error)
	// SetAssignee stores the assignee; an empty userID clears it.
	SetAssignee(ctx context.Context, id, userID string) error
	MarkNotified(ctx context.Context, id string, at time.Time) error
	// UpdateStatus moves a ticket from one status to another and reports
	// whether the row was still in the expected status.
	UpdateStatus(ctx context.Context, id string, from, to models.Status) (bool, error)

	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
	CountOpenByPriority(ctx context.Context, p models.Priority) (int, error)
}

type UserRepository interface {
	// Create stores u and fills in its ID and timestamps. A taken email
	// yields ErrDuplicate.
	Create(ctx context.Context, u *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateRoleSkills(ctx context.Context, email string, role models.Role, skills []string) (*models.User, error)

	// FindModeratorBySkills returns the oldest moderator having a skill that
	// contains any of skills, case-insensitively.
	FindModeratorBySkills(ctx context.Context, skills []string) (*models.User, error)
	FirstAdmin(ctx context.Context) (*models.User, error)
}
