package repository

import "github.com/JoshiAarya/ai-ticket-app/internal/models"

type TicketFilter struct {
	CreatedBy string
	Status    models.Status
	Assignee  string
	Limit     int
	Offset    int
}

// Page clamps the paging fields to sane bounds.
func (f TicketFilter) Page() (limit, offset int) {
	limit, offset = f.Limit, f.Offset
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
