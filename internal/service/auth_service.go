package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/JoshiAarya/ai-ticket-app/internal/events"
	"github.com/JoshiAarya/ai-ticket-app/internal/models"
	"github.com/JoshiAarya/ai-ticket-app/internal/repository"
	"github.com/JoshiAarya/ai-ticket-app/internal/utils"
)

const minPasswordLen = 6

type AuthService struct {
	users         repository.UserRepository
	events        events.Publisher
	sessionSecret string
	log           zerolog.Logger
}

func NewAuthService(users repository.UserRepository, pub events.Publisher, sessionSecret string, log zerolog.Logger) *AuthService {
	return &AuthService{users: users, events: pub, sessionSecret: sessionSecret, log: log}
}

// Session is a user together with a freshly signed token.
type Session struct {
	User  *models.User
	Token string
}

func (a *AuthService) Signup(ctx context.Context, email, password string, skills []string) (*Session, error) {
	email = models.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}
	if len(password) > utils.MaxPasswordBytes {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, utils.MaxPasswordBytes)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Skills:       models.CleanSkills(skills),
	}
	if err := a.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	// Welcome mail is best effort.
	if _, err := a.events.Publish(ctx, events.UserSignup, events.UserSignupPayload{UserID: u.ID, Email: u.Email}); err != nil {
		a.log.Error().Err(err).Str("user_id", u.ID).Msg("publish user/signup failed")
	}
	return a.session(u)
}

func (a *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := a.users.GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		utils.CheckDummyPassword(password)
		return nil, ErrUnauthorized
	}
	if !utils.CheckPassword(u.PasswordHash, password) {
		return nil, ErrUnauthorized
	}
	return a.session(u)
}

func (a *AuthService) session(u *models.User) (*Session, error) {
	tok, err := utils.SignJWT(a.sessionSecret, u.ID, u.Role.String(), utils.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{User: u, Token: tok}, nil
}

// Authenticate verifies a session token and returns the caller it names.
func (a *AuthService) Authenticate(token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, ErrUnauthorized
	}
	claims, err := utils.ParseJWT(a.sessionSecret, token)
	if err != nil {
		return models.Identity{}, ErrUnauthorized
	}
	role, ok := models.ParseRole(claims.Role)
	if !ok || claims.UserID == "" {
		return models.Identity{}, ErrUnauthorized
	}
	return models.Identity{UserID: claims.UserID, Role: role}, nil
}

func (a *AuthService) Me(ctx context.Context, caller models.Identity) (*models.User, error) {
	u, err := a.users.GetByID(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, ErrUnauthorized
	}
	return u, nil
}

// UpdateUser changes the role and skills of the account with email. An empty
// role or skill list keeps the current value.
func (a *AuthService) UpdateUser(ctx context.Context, caller models.Identity, email, role string, skills []string) (*models.User, error) {
	if !canManageUsers(caller.Role) {
		return nil, ErrForbidden
	}
	u, err := a.users.GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, ErrNotFound
	}

	newRole := u.Role
	if strings.TrimSpace(role) != "" {
		r, ok := models.ParseRole(role)
		if !ok {
			return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
		}
		newRole = r
	}
	newSkills := u.Skills
	if cleaned := models.CleanSkills(skills); len(cleaned) > 0 {
		newSkills = cleaned
	}

	updated, err := a.users.UpdateRoleSkills(ctx, u.Email, newRole, newSkills)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	return updated, nil
}

func (a *AuthService) ListUsers(ctx context.Context, caller models.Identity) ([]models.User, error) {
	if !canManageUsers(caller.Role) {
		return nil, ErrForbidden
	}
	users, err := a.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
