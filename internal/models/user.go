package models

import (
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// ParseRole maps s onto a known role, ignoring case and surrounding space.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string { return string(r) }

type User struct {
	ID           string    `json:"_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Skills       []string  `json:"skills"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CleanSkills trims entries and drops empty ones and case-insensitive duplicates,
// keeping the first spelling seen.
func CleanSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		k := strings.ToLower(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}

// SkillsMatch reports whether any ticket skill occurs, case-insensitively, inside
// any of the user's skills.
func SkillsMatch(userSkills, ticketSkills []string) bool {
	for _, us := range userSkills {
		us = strings.ToLower(us)
		for _, ts := range ticketSkills {
			ts = strings.ToLower(strings.TrimSpace(ts))
			if ts != "" && strings.Contains(us, ts) {
				return true
			}
		}
	}
	return false
}

// Identity is the authenticated caller decoded from a session token.
type Identity struct {
	UserID string
	Role   Role
}
