package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/JoshiAarya/ai-ticket-app/internal/events"
	"github.com/JoshiAarya/ai-ticket-app/internal/models"
	"github.com/JoshiAarya/ai-ticket-app/internal/repository/memory"
	"github.com/JoshiAarya/ai-ticket-app/internal/utils"
)

const testSecret = "test-secret"

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, any) (string, error) {
	return "", errors.New("queue unavailable")
}

type env struct {
	users   *memory.UserRepo
	tickets *memory.TicketRepo
	queue   *events.MemoryQueue
	auth    *AuthService
	svc     *TicketService
}

func newEnv() *env {
	users := memory.NewUserRepo()
	tickets := memory.NewTicketRepo(users)
	q := events.NewMemoryQueue()
	return &env{
		users:   users,
		tickets: tickets,
		queue:   q,
		auth:    NewAuthService(users, q, testSecret, zerolog.Nop()),
		svc:     NewTicketService(tickets, q, zerolog.Nop()),
	}
}

func (e *env) identity(t *testing.T, email string, role models.Role) models.Identity {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", Role: role}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return models.Identity{UserID: u.ID, Role: role}
}

func TestSignupAndLogin(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	s, err := e.auth.Signup(ctx, " Alice@Example.com ", "secret1", []string{"go", " "})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if s.User.Email != "alice@example.com" || s.User.Role != models.RoleUser || s.Token == "" {
		t.Fatalf("unexpected session %+v", s.User)
	}
	if len(s.User.Skills) != 1 {
		t.Fatalf("skills = %v", s.User.Skills)
	}

	evs, _ := e.queue.Lease(ctx, "t", 10, 0)
	if len(evs) != 1 || evs[0].Name != events.UserSignup {
		t.Fatalf("expected one user/signup event, got %+v", evs)
	}

	if _, err := e.auth.Signup(ctx, "alice@example.com", "secret1", nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate signup err = %v", err)
	}

	login, err := e.auth.Login(ctx, "ALICE@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := utils.ParseJWT(testSecret, login.Token)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != s.User.ID || claims.Role != models.RoleUser.String() {
		t.Fatalf("login token claims = %+v, want user %s", claims, s.User.ID)
	}
	if _, err := e.auth.Login(ctx, "alice@example.com", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("bad password err = %v", err)
	}
	if _, err := e.auth.Login(ctx, "nobody@example.com", "secret1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unknown email err = %v", err)
	}
}

func TestSignup_Validation(t *testing.T) {
	e := newEnv()
	for _, tc := range []struct{ email, password string }{
		{"", "secret1"},
		{"no-at-sign", "secret1"},
		{"a@b.co", "short"},
	} {
		if _, err := e.auth.Signup(context.Background(), tc.email, tc.password, nil); !errors.Is(err, ErrValidation) {
			t.Errorf("Signup(%q, %q) err = %v", tc.email, tc.password, err)
		}
	}
}

func TestSignup_PublishFailureIsNotFatal(t *testing.T) {
	users := memory.NewUserRepo()
	auth := NewAuthService(users, failingPublisher{}, testSecret, zerolog.Nop())
	if _, err := auth.Signup(context.Background(), "a@b.co", "secret1", nil); err != nil {
		t.Fatalf("Signup: %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	e := newEnv()
	tok, _ := utils.SignJWT(testSecret, "u1", "moderator", utils.SessionTTL)
	id, err := e.auth.Authenticate(tok)
	if err != nil || id.UserID != "u1" || id.Role != models.RoleModerator {
		t.Fatalf("Authenticate = %+v, %v", id, err)
	}

	bad, _ := utils.SignJWT(testSecret, "u1", "root", utils.SessionTTL)
	other, _ := utils.SignJWT("other-secret", "u1", "admin", utils.SessionTTL)
	expired, _ := utils.SignJWT(testSecret, "u1", "admin", -time.Hour)
	for name, tok := range map[string]string{"empty": "", "role": bad, "secret": other, "expired": expired, "garbage": "abc"} {
		if _, err := e.auth.Authenticate(tok); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}

func TestUpdateUser(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	admin := e.identity(t, "admin@example.com", models.RoleAdmin)
	mod := e.identity(t, "mod@example.com", models.RoleModerator)
	if _, err := e.auth.Signup(ctx, "bob@example.com", "secret1", []string{"css"}); err != nil {
		t.Fatal(err)
	}

	if _, err := e.auth.UpdateUser(ctx, mod, "bob@example.com", "admin", nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("moderator update err = %v", err)
	}
	if _, err := e.auth.UpdateUser(ctx, admin, "ghost@example.com", "moderator", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user err = %v", err)
	}
	if _, err := e.auth.UpdateUser(ctx, admin, "bob@example.com", "superuser", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad role err = %v", err)
	}

	u, err := e.auth.UpdateUser(ctx, admin, "bob@example.com", "Moderator", nil)
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if u.Role != models.RoleModerator || len(u.Skills) != 1 || u.Skills[0] != "css" {
		t.Fatalf("empty skills must keep existing: %+v", u)
	}

	u, err = e.auth.UpdateUser(ctx, admin, "bob@example.com", "", []string{"react", "css"})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if u.Role != models.RoleModerator || len(u.Skills) != 2 {
		t.Fatalf("empty role must keep existing: %+v", u)
	}

	if _, err := e.auth.ListUsers(ctx, mod); !errors.Is(err, ErrForbidden) {
		t.Fatalf("ListUsers as moderator err = %v", err)
	}
	all, err := e.auth.ListUsers(ctx, admin)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListUsers = %d, %v", len(all), err)
	}
}

func TestTicketCreateAndVisibility(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	alice := e.identity(t, "alice@example.com", models.RoleUser)
	bob := e.identity(t, "bob@example.com", models.RoleUser)
	mod := e.identity(t, "mod@example.com", models.RoleModerator)

	if _, err := e.svc.Create(ctx, alice, "  ", "desc"); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty title err = %v", err)
	}
	tk, err := e.svc.Create(ctx, alice, " Broken build ", " CI fails ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tk.Status != models.StatusTodo || tk.Priority != models.PriorityMedium || tk.Title != "Broken build" {
		t.Fatalf("unexpected ticket %+v", tk)
	}
	if _, err := e.svc.Create(ctx, bob, "Other", "ticket"); err != nil {
		t.Fatal(err)
	}

	evs, _ := e.queue.Lease(ctx, "t", 10, 0)
	if len(evs) != 2 || evs[0].Name != events.TicketCreated {
		t.Fatalf("events = %+v", evs)
	}

	mine, _ := e.svc.List(ctx, alice, 0, 0)
	if len(mine) != 1 || mine[0].ID != tk.ID {
		t.Fatalf("alice sees %d tickets", len(mine))
	}
	all, _ := e.svc.List(ctx, mod, 0, 0)
	if len(all) != 2 {
		t.Fatalf("moderator sees %d tickets", len(all))
	}

	if _, err := e.svc.Get(ctx, bob, tk.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign ticket err = %v", err)
	}
	if _, err := e.svc.Get(ctx, mod, tk.ID); err != nil {
		t.Fatalf("moderator Get: %v", err)
	}
}

func TestTicketCreate_PublishFailureIsReturned(t *testing.T) {
	users := memory.NewUserRepo()
	svc := NewTicketService(memory.NewTicketRepo(users), failingPublisher{}, zerolog.Nop())
	if _, err := svc.Create(context.Background(), models.Identity{UserID: "u", Role: models.RoleUser}, "t", "d"); err == nil {
		t.Fatal("expected publish failure to surface")
	}
}

func TestMarkDone(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	alice := e.identity(t, "alice@example.com", models.RoleUser)
	mod := e.identity(t, "mod@example.com", models.RoleModerator)
	other := e.identity(t, "other@example.com", models.RoleModerator)
	admin := e.identity(t, "admin@example.com", models.RoleAdmin)

	tk, _ := e.svc.Create(ctx, alice, "t", "d")
	if err := e.tickets.SetAssignee(ctx, tk.ID, mod.UserID); err != nil {
		t.Fatal(err)
	}

	if _, err := e.svc.MarkDone(ctx, alice, tk.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("creator err = %v", err)
	}
	if _, err := e.svc.MarkDone(ctx, other, tk.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other moderator err = %v", err)
	}
	if _, err := e.svc.MarkDone(ctx, mod, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}

	done, err := e.svc.MarkDone(ctx, mod, tk.ID)
	if err != nil || done.Status != models.StatusDone {
		t.Fatalf("MarkDone = %+v, %v", done, err)
	}
	if again, err := e.svc.MarkDone(ctx, admin, tk.ID); err != nil || again.Status != models.StatusDone {
		t.Fatalf("repeat MarkDone = %+v, %v", again, err)
	}
}

func TestSummary(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	alice := e.identity(t, "alice@example.com", models.RoleUser)
	admin := e.identity(t, "admin@example.com", models.RoleAdmin)
	a, _ := e.svc.Create(ctx, alice, "a", "d")
	b, _ := e.svc.Create(ctx, alice, "b", "d")
	_, _ = e.tickets.ApplyClassification(ctx, a.ID, models.Classification{Priority: models.PriorityHigh})
	_, _ = e.tickets.UpdateStatus(ctx, b.ID, models.StatusTodo, models.StatusDone)

	if _, err := e.svc.Summary(ctx, alice); !errors.Is(err, ErrForbidden) {
		t.Fatalf("user summary err = %v", err)
	}
	s, err := e.svc.Summary(ctx, admin)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.OpenHighPriority != 1 || len(s.ByStatus) != 2 {
		t.Fatalf("summary = %+v", s)
	}
}
