package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JoshiAarya/ai-ticket-app/internal/models"
	"github.com/JoshiAarya/ai-ticket-app/internal/repository"
)

type TicketRepo struct{ db *pgxpool.Pool }

func NewTicketRepo(db *pgxpool.Pool) repository.TicketRepository { return &TicketRepo{db: db} }

// Tickets are always read joined with the assignee's email.
const ticketSelect = `
	SELECT
		t.id, t.title, t.description, t.status, t.priority, t.helpful_notes, t.related_skills,
		COALESCE(t.assigned_to::text, ''), COALESCE(u.email, ''), t.created_by,
		t.triage_attempts, t.notified_at, t.created_at, t.updated_at
	FROM tickets t
	LEFT JOIN users u ON u.id = t.assigned_to`

func scanTicket(row pgx.Row) (*models.Ticket, error) {
	var t models.Ticket
	var status, priority, assigneeID, assigneeEmail string
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &status, &priority, &t.HelpfulNotes, &t.RelatedSkills,
		&assigneeID, &assigneeEmail, &t.CreatedBy,
		&t.TriageAttempts, &t.NotifiedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.Status = models.Status(status)
	t.Priority = models.Priority(priority)
	if assigneeID != "" {
		t.AssignedTo = &models.UserRef{ID: assigneeID, Email: assigneeEmail}
	}
	if t.RelatedSkills == nil {
		t.RelatedSkills = []string{}
	}
	return &t, nil
}

func (r *TicketRepo) Create(ctx context.Context, t *models.Ticket) error {
	if t.Status == "" {
		t.Status = models.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if t.RelatedSkills == nil {
		t.RelatedSkills = []string{}
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO tickets (title, description, status, priority, related_skills, created_by)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at, updated_at
	`,
		t.Title, t.Description, string(t.Status), string(t.Priority), t.RelatedSkills, t.CreatedBy,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *TicketRepo) Get(ctx context.Context, id string) (*models.Ticket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return scanTicket(r.db.QueryRow(ctx, ticketSelect+` WHERE t.id = $1`, id))
}

func (r *TicketRepo) List(ctx context.Context, f repository.TicketFilter) ([]models.Ticket, error) {
	limit, offset := f.Page()
	whereSQL, args := buildTicketWhere(f)
	args = append(args, limit, offset)

	sql := ticketSelect + `
		` + whereSQL + `
		ORDER BY t.created_at DESC
		LIMIT $` + itoa(len(args)-1) + ` OFFSET $` + itoa(len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Triage writes
// -----------------------------------------------------------------------------

func (r *TicketRepo) MarkTriageStarted(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE tickets SET triage_attempts = triage_attempts + 1, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *TicketRepo) ApplyClassification(ctx context.Context, id string, c models.Classification) (bool, error) {
	skills := c.RelatedSkills
	if skills == nil {
		skills = []string{}
	}
	ct, err := r.db.Exec(ctx, `
		UPDATE tickets SET
			priority = $1, helpful_notes = $2, related_skills = $3, status = $4, updated_at = now()
		WHERE id = $5 AND status = $6
	`, string(models.NormalizePriority(string(c.Priority))), c.HelpfulNotes, skills,
		string(models.StatusInProgress), id, string(models.StatusTodo))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *TicketRepo) SetAssignee(ctx context.Context, id, userID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE tickets SET assigned_to = $1, updated_at = now() WHERE id = $2
	`, nullIfEmpty(userID), id)
	return err
}

func (r *TicketRepo) MarkNotified(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE tickets SET notified_at = $1 WHERE id = $2`, at, id)
	return err
}

func (r *TicketRepo) UpdateStatus(ctx context.Context, id string, from, to models.Status) (bool, error) {
	ct, err := r.db.Exec(ctx, `
		UPDATE tickets SET status = $1, updated_at = now() WHERE id = $2 AND status = $3
	`, string(to), id, string(from))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// -----------------------------------------------------------------------------
// Reporting helpers (used by /api/reports)
// -----------------------------------------------------------------------------

func (r *TicketRepo) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.StatusCount{}
	for rows.Next() {
		var sc models.StatusCount
		var status string
		if err := rows.Scan(&status, &sc.Count); err != nil {
			return nil, err
		}
		sc.Status = models.Status(status)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// CountOpenByPriority counts tickets that are not DONE with the given priority.
func (r *TicketRepo) CountOpenByPriority(ctx context.Context, p models.Priority) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE status <> $1 AND priority = $2`,
		string(models.StatusDone), string(p)).Scan(&n)
	return n, err
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func buildTicketWhere(f repository.TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if s := strings.TrimSpace(f.CreatedBy); s != "" {
		args = append(args, s)
		clauses = append(clauses, "t.created_by = $"+itoa(len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		clauses = append(clauses, "t.status = $"+itoa(len(args)))
	}
	if a := strings.TrimSpace(f.Assignee); a != "" {
		args = append(args, a)
		clauses = append(clauses, "t.assigned_to = $"+itoa(len(args)))
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// small helper to avoid fmt for performance-sensitive path.
func itoa(i int) string { return strconv.Itoa(i) }
