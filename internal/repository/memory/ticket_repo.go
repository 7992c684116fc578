package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JoshiAarya/ai-ticket-app/internal/models"
	"github.com/JoshiAarya/ai-ticket-app/internal/repository"
)

var errTicketNotFound = errors.New("ticket not found")

type TicketRepo struct {
	mu      sync.RWMutex
	users   *UserRepo
	tickets map[string]*models.Ticket
	seq     int
}

// NewTicketRepo resolves assignee emails through users.
func NewTicketRepo(users *UserRepo) *TicketRepo {
	return &TicketRepo{users: users, tickets: map[string]*models.Ticket{}}
}

var _ repository.TicketRepository = (*TicketRepo)(nil)

func (r *TicketRepo) view(t *models.Ticket) *models.Ticket {
	c := *t
	c.RelatedSkills = append([]string{}, t.RelatedSkills...)
	if t.AssignedTo != nil {
		c.AssignedTo = &models.UserRef{ID: t.AssignedTo.ID, Email: r.users.email(t.AssignedTo.ID)}
	}
	if t.NotifiedAt != nil {
		at := *t.NotifiedAt
		c.NotifiedAt = &at
	}
	return &c
}

func (r *TicketRepo) Create(_ context.Context, t *models.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Status == "" {
		t.Status = models.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if t.RelatedSkills == nil {
		t.RelatedSkills = []string{}
	}
	r.seq++
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now().UTC().Add(time.Duration(r.seq))
	t.UpdatedAt = t.CreatedAt
	stored := *t
	stored.RelatedSkills = append([]string{}, t.RelatedSkills...)
	r.tickets[t.ID] = &stored
	return nil
}

func (r *TicketRepo) Get(_ context.Context, id string) (*models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, nil
	}
	return r.view(t), nil
}

func (r *TicketRepo) List(_ context.Context, f repository.TicketFilter) ([]models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*models.Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		if f.CreatedBy != "" && t.CreatedBy != f.CreatedBy {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Assignee != "" && t.AssigneeID() != f.Assignee {
			continue
		}
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	limit, offset := f.Page()
	out := []models.Ticket{}
	for i := offset; i < len(all) && len(out) < limit; i++ {
		out = append(out, *r.view(all[i]))
	}
	return out, nil
}

func (r *TicketRepo) MarkTriageStarted(_ context.Context, id string) error {
	return r.update(id, func(t *models.Ticket) bool {
		t.TriageAttempts++
		return true
	})
}

func (r *TicketRepo) ApplyClassification(_ context.Context, id string, c models.Classification) (bool, error) {
	applied := false
	err := r.update(id, func(t *models.Ticket) bool {
		if t.Status != models.StatusTodo {
			return false
		}
		t.Priority = models.NormalizePriority(string(c.Priority))
		t.HelpfulNotes = c.HelpfulNotes
		t.RelatedSkills = append([]string{}, c.RelatedSkills...)
		t.Status = models.StatusInProgress
		applied = true
		return true
	})
	return applied, err
}

func (r *TicketRepo) SetAssignee(_ context.Context, id, userID string) error {
	return r.update(id, func(t *models.Ticket) bool {
		if userID == "" {
			t.AssignedTo = nil
		} else {
			t.AssignedTo = &models.UserRef{ID: userID}
		}
		return true
	})
}

func (r *TicketRepo) MarkNotified(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(t *models.Ticket) bool {
		t.NotifiedAt = &at
		return false
	})
}

func (r *TicketRepo) UpdateStatus(_ context.Context, id string, from, to models.Status) (bool, error) {
	moved := false
	err := r.update(id, func(t *models.Ticket) bool {
		if t.Status != from {
			return false
		}
		t.Status = to
		moved = true
		return true
	})
	return moved, err
}

func (r *TicketRepo) CountByStatus(_ context.Context) ([]models.StatusCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := map[models.Status]int{}
	for _, t := range r.tickets {
		counts[t.Status]++
	}
	out := []models.StatusCount{}
	for _, s := range []models.Status{models.StatusDone, models.StatusInProgress, models.StatusTodo} {
		if n := counts[s]; n > 0 {
			out = append(out, models.StatusCount{Status: s, Count: n})
		}
	}
	return out, nil
}

func (r *TicketRepo) CountOpenByPriority(_ context.Context, p models.Priority) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, t := range r.tickets {
		if t.Status != models.StatusDone && t.Priority == p {
			n++
		}
	}
	return n, nil
}

// update applies fn under the write lock; fn reports whether updated_at moves.
func (r *TicketRepo) update(id string, fn func(*models.Ticket) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return errTicketNotFound
	}
	if fn(t) {
		t.UpdatedAt = time.Now().UTC()
	}
	return nil
}
