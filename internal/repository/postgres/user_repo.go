package postgres

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JoshiAarya/ai-ticket-app/internal/models"
	"github.com/JoshiAarya/ai-ticket-app/internal/repository"
)

const uniqueViolation = "23505"

const userColumns = `id, email, password_h, role, skills, created_at, updated_at`

type UserRepo struct{ db *pgxpool.Pool }

func NewUserRepo(db *pgxpool.Pool) repository.UserRepository { return &UserRepo{db: db} }

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.Skills, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Role = models.Role(role)
	if u.Skills == nil {
		u.Skills = []string{}
	}
	return &u, nil
}

// Create user (stores bcrypt hash in password_h)
func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	if u.Skills == nil {
		u.Skills = []string{}
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (email, password_h, role, skills)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at, updated_at`,
		models.NormalizeEmail(u.Email), u.PasswordHash, string(u.Role), u.Skills).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.ErrDuplicate
		}
		return err
	}
	u.Email = models.NormalizeEmail(u.Email)
	return nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE email=$1`, models.NormalizeEmail(email)))
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return scanUser(r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE id=$1`, id))
}

func (r *UserRepo) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *UserRepo) UpdateRoleSkills(ctx context.Context, email string, role models.Role, skills []string) (*models.User, error) {
	if skills == nil {
		skills = []string{}
	}
	return scanUser(r.db.QueryRow(ctx, `
		UPDATE users
		SET role=$1, skills=$2, updated_at=now()
		WHERE email=$3
		RETURNING `+userColumns,
		string(role), skills, models.NormalizeEmail(email)))
}

// -----------------------------------------------------------------------------
// Assignment lookups
// -----------------------------------------------------------------------------

// FindModeratorBySkills matches each moderator skill against an alternation of
// the ticket skills with the case-insensitive regex operator.
func (r *UserRepo) FindModeratorBySkills(ctx context.Context, skills []string) (*models.User, error) {
	pattern := skillPattern(skills)
	if pattern == "" {
		return nil, nil
	}
	return scanUser(r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u
		WHERE u.role = 'moderator'
		  AND EXISTS (SELECT 1 FROM unnest(u.skills) AS s WHERE s ~* $1)
		ORDER BY u.created_at ASC
		LIMIT 1`, pattern))
}

func (r *UserRepo) FirstAdmin(ctx context.Context) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE role = 'admin'
		ORDER BY created_at ASC
		LIMIT 1`))
}

// skillPattern quotes every skill so AI output is matched literally.
func skillPattern(skills []string) string {
	parts := make([]string, 0, len(skills))
	for _, s := range skills {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, regexp.QuoteMeta(s))
		}
	}
	return strings.Join(parts, "|")
}
