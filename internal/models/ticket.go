package models

import (
	"strings"
	"time"
)

type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

func (s Status) rank() int {
	switch s {
	case StatusTodo:
		return 1
	case StatusInProgress:
		return 2
	case StatusDone:
		return 3
	default:
		return 0
	}
}

func (s Status) Valid() bool { return s.rank() > 0 }

// CanTransition allows forward moves and re-writing the current status.
func (s Status) CanTransition(to Status) bool {
	if !s.Valid() || !to.Valid() {
		return false
	}
	return to.rank() >= s.rank()
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// NormalizePriority clamps s to the three known priorities; anything else is medium.
func NormalizePriority(s string) Priority {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p
	default:
		return PriorityMedium
	}
}

// UserRef is the assignee as shown on a ticket.
type UserRef struct {
	ID    string `json:"_id"`
	Email string `json:"email"`
}

type Ticket struct {
	ID             string     `json:"_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         Status     `json:"status"`
	Priority       Priority   `json:"priority"`
	HelpfulNotes   string     `json:"helpfulNotes"`
	RelatedSkills  []string   `json:"relatedSkills"`
	AssignedTo     *UserRef   `json:"assignedTo"`
	CreatedBy      string     `json:"createdBy"`
	TriageAttempts int        `json:"-"`
	NotifiedAt     *time.Time `json:"-"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (t *Ticket) AssigneeID() string {
	if t.AssignedTo == nil {
		return ""
	}
	return t.AssignedTo.ID
}

// Classification is what triage writes back onto a ticket.
type Classification struct {
	Priority      Priority
	HelpfulNotes  string
	RelatedSkills []string
}

// StatusCount is one row of the per-status report.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
}
