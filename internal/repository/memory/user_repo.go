// Package memory implements the repositories in process memory. It backs
// DB-less runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JoshiAarya/ai-ticket-app/internal/models"
	"github.com/JoshiAarya/ai-ticket-app/internal/repository"
)

type UserRepo struct {
	mu      sync.RWMutex
	byID    map[string]*models.User
	byEmail map[string]string
	seq     int
}

func NewUserRepo() *UserRepo {
	return &UserRepo{byID: map[string]*models.User{}, byEmail: map[string]string{}}
}

var _ repository.UserRepository = (*UserRepo)(nil)

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Skills = append([]string{}, u.Skills...)
	return &c
}

func (r *UserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := models.NormalizeEmail(u.Email)
	if _, ok := r.byEmail[email]; ok {
		return repository.ErrDuplicate
	}
	now := time.Now().UTC()
	r.seq++
	u.ID = uuid.NewString()
	u.Email = email
	if u.Skills == nil {
		u.Skills = []string{}
	}
	// seq keeps creation order stable when timestamps collide
	u.CreatedAt = now.Add(time.Duration(r.seq))
	u.UpdatedAt = u.CreatedAt
	r.byID[u.ID] = cloneUser(u)
	r.byEmail[email] = u.ID
	return nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return cloneUser(r.byID[id]), nil
}

func (r *UserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return cloneUser(u), nil
}

func (r *UserRepo) List(_ context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.User, 0, len(r.byID))
	for _, u := range r.sorted() {
		out = append(out, *cloneUser(u))
	}
	return out, nil
}

func (r *UserRepo) UpdateRoleSkills(_ context.Context, email string, role models.Role, skills []string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	u := r.byID[id]
	u.Role = role
	u.Skills = append([]string{}, skills...)
	u.UpdatedAt = time.Now().UTC()
	return cloneUser(u), nil
}

func (r *UserRepo) FindModeratorBySkills(_ context.Context, skills []string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.sorted() {
		if u.Role == models.RoleModerator && models.SkillsMatch(u.Skills, skills) {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *UserRepo) FirstAdmin(_ context.Context) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.sorted() {
		if u.Role == models.RoleAdmin {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

// email returns the address of a user id, or "" when unknown.
func (r *UserRepo) email(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.byID[id]; ok {
		return u.Email
	}
	return ""
}

func (r *UserRepo) sorted() []*models.User {
	all := make([]*models.User, 0, len(r.byID))
	for _, u := range r.byID {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all
}
