package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/JoshiAarya/ai-ticket-app/internal/events"
	"github.com/JoshiAarya/ai-ticket-app/internal/models"
	"github.com/JoshiAarya/ai-ticket-app/internal/notify"
	"github.com/JoshiAarya/ai-ticket-app/internal/repository/memory"
	"github.com/JoshiAarya/ai-ticket-app/internal/triage"
)

type fakeClassifier struct {
	mu    sync.Mutex
	res   triage.Result
	err   error
	calls int
}

func (f *fakeClassifier) Classify(context.Context, string, string) (triage.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.res, f.err
}

type fakeSender struct {
	mu   sync.Mutex
	err  error
	sent []notify.Message
}

func (f *fakeSender) Send(_ context.Context, m notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

type fixture struct {
	users      *memory.UserRepo
	tickets    *memory.TicketRepo
	classifier *fakeClassifier
	sender     *fakeSender
}

func newFixture(res triage.Result) *fixture {
	users := memory.NewUserRepo()
	return &fixture{
		users:      users,
		tickets:    memory.NewTicketRepo(users),
		classifier: &fakeClassifier{res: res},
		sender:     &fakeSender{},
	}
}

func (f *fixture) triage(aiPolicy triage.Policy, notifyPolicy notify.Policy) *Triage {
	analyzer := triage.NewAnalyzer(f.classifier, aiPolicy, zerolog.Nop())
	return NewTriage(f.tickets, f.users, analyzer, f.sender,
		Config{StepMaxAttempts: 2, StepBackoff: time.Millisecond, NotifyPolicy: notifyPolicy},
		zerolog.Nop())
}

func (f *fixture) user(t *testing.T, email string, role models.Role, skills ...string) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", Role: role, Skills: skills}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) ticket(t *testing.T) *models.Ticket {
	t.Helper()
	tk := &models.Ticket{Title: "App crashes on login", Description: "stack trace attached", CreatedBy: "u1"}
	if err := f.tickets.Create(context.Background(), tk); err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return tk
}

func classified(skills ...string) triage.Result {
	return triage.Result{
		Summary:       "login crash",
		Priority:      models.PriorityHigh,
		HelpfulNotes:  "check the session store",
		RelatedSkills: skills,
	}
}

func TestRun_AssignsMatchingModerator(t *testing.T) {
	f := newFixture(classified("React"))
	f.user(t, "admin@example.com", models.RoleAdmin)
	f.user(t, "backend@example.com", models.RoleModerator, "Go", "Postgres")
	mod := f.user(t, "frontend@example.com", models.RoleModerator, "react native")
	tk := f.ticket(t)

	out := f.triage(triage.PolicyFallback, notify.PolicyLog).Run(context.Background(), tk.ID)
	if out.Result != Succeeded || out.Err != nil {
		t.Fatalf("outcome = %+v", out)
	}
	if out.AssigneeID != mod.ID {
		t.Fatalf("assignee = %s, want %s", out.AssigneeID, mod.ID)
	}

	got, _ := f.tickets.Get(context.Background(), tk.ID)
	if got.Status != models.StatusInProgress || got.Priority != models.PriorityHigh || got.HelpfulNotes == "" {
		t.Fatalf("ticket not classified: %+v", got)
	}
	if got.AssignedTo == nil || got.AssignedTo.Email != "frontend@example.com" {
		t.Fatalf("assignedTo = %+v", got.AssignedTo)
	}
	if got.NotifiedAt == nil {
		t.Fatal("expected notified_at to be stamped")
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0].To != "frontend@example.com" {
		t.Fatalf("sent = %+v", f.sender.sent)
	}
}

func TestRun_FallbackIsPartial(t *testing.T) {
	f := newFixture(triage.Result{})
	f.classifier.err = errors.New("provider down")
	f.user(t, "support@example.com", models.RoleModerator, "Customer Support")
	tk := f.ticket(t)

	out := f.triage(triage.PolicyFallback, notify.PolicyLog).Run(context.Background(), tk.ID)
	if out.Result != Partial || !out.Fallback {
		t.Fatalf("outcome = %+v", out)
	}
	got, _ := f.tickets.Get(context.Background(), tk.ID)
	if got.Priority != models.PriorityMedium || got.Status != models.StatusInProgress {
		t.Fatalf("fallback not applied: %+v", got)
	}
	if got.AssigneeID() == "" {
		t.Fatal("fallback skills should still match the support moderator")
	}
}

func TestRun_AIFailPolicyFails(t *testing.T) {
	f := newFixture(triage.Result{})
	f.classifier.err = errors.New("provider down")
	tk := f.ticket(t)

	out := f.triage(triage.PolicyFail, notify.PolicyLog).Run(context.Background(), tk.ID)
	if out.Result != Failed || out.Err == nil {
		t.Fatalf("outcome = %+v", out)
	}
	if f.classifier.calls != 2 {
		t.Fatalf("classifier calls = %d, want 2", f.classifier.calls)
	}
	step, _ := out.Step(StepAIProcessing)
	if step.Attempts != 2 || step.Err == "" {
		t.Fatalf("ai step = %+v", step)
	}
	got, _ := f.tickets.Get(context.Background(), tk.ID)
	if got.Status != models.StatusTodo {
		t.Fatalf("status = %s, want TODO", got.Status)
	}
}

func TestRun_FallsBackToAdmin(t *testing.T) {
	f := newFixture(classified("kubernetes"))
	f.user(t, "mod@example.com", models.RoleModerator, "react")
	admin := f.user(t, "admin@example.com", models.RoleAdmin)
	f.user(t, "admin2@example.com", models.RoleAdmin)
	tk := f.ticket(t)

	out := f.triage(triage.PolicyFallback, notify.PolicyLog).Run(context.Background(), tk.ID)
	if out.Result != Succeeded || out.AssigneeID != admin.ID {
		t.Fatalf("outcome = %+v, want admin %s", out, admin.ID)
	}
}

func TestRun_NoStaffLeavesUnassigned(t *testing.T) {
	f := newFixture(classified("docker"))
	f.user(t, "someone@example.com", models.RoleUser, "docker")
	tk := f.ticket(t)

	out := f.triage(triage.PolicyFallback, notify.PolicyLog).Run(context.Background(), tk.ID)
	if out.Result != Partial || out.AssigneeID != "" {
		t.Fatalf("outcome = %+v", out)
	}
	if _, ok := out.Step(StepSendNotification); ok {
		t.Fatal("notification must not run without an assignee")
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("sent = %+v", f.sender.sent)
	}
}

func TestRun_NotificationFailure(t *testing.T) {
	for _, tc := range []struct {
		policy notify.Policy
		want   Result
	}{
		{notify.PolicyLog, Partial},
		{notify.PolicyFail, Failed},
	} {
		t.Run(string(tc.policy), func(t *testing.T) {
			f := newFixture(classified("go"))
			f.sender.err = errors.New("smtp: connection refused")
			f.user(t, "gopher@example.com", models.RoleModerator, "golang")
			tk := f.ticket(t)

			out := f.triage(triage.PolicyFallback, tc.policy).Run(context.Background(), tk.ID)
			if out.Result != tc.want {
				t.Fatalf("result = %s, want %s", out.Result, tc.want)
			}
			got, _ := f.tickets.Get(context.Background(), tk.ID)
			if got.NotifiedAt != nil {
				t.Fatal("notified_at must stay empty when sending failed")
			}
			if got.AssigneeID() == "" || got.Status != models.StatusInProgress {
				t.Fatalf("earlier writes must persist: %+v", got)
			}
		})
	}
}

func TestRun_MissingTicketIsPermanent(t *testing.T) {
	f := newFixture(classified("go"))
	out := f.triage(triage.PolicyFallback, notify.PolicyLog).Run(context.Background(), "0b6d0d5e-8d4a-4d67-9fd5-5b0c1a1f0000")
	if out.Result != Failed || !errors.Is(out.Err, ErrTicketNotFound) || !events.IsPermanent(out.Err) {
		t.Fatalf("outcome = %+v", out)
	}
	step, _ := out.Step(StepFetchTicket)
	if step.Attempts != 1 {
		t.Fatalf("fetch attempts = %d, want 1", step.Attempts)
	}
	if f.classifier.calls != 0 {
		t.Fatal("classifier must not run for a missing ticket")
	}
}

func TestRun_RerunDoesNotRepeatWork(t *testing.T) {
	f := newFixture(classified("postgres"))
	f.user(t, "dba@example.com", models.RoleModerator, "PostgreSQL")
	tk := f.ticket(t)
	tr := f.triage(triage.PolicyFallback, notify.PolicyLog)

	first := tr.Run(context.Background(), tk.ID)
	second := tr.Run(context.Background(), tk.ID)
	if first.Result != Succeeded || second.Result != Succeeded {
		t.Fatalf("results = %s, %s", first.Result, second.Result)
	}
	if f.classifier.calls != 1 {
		t.Fatalf("classifier calls = %d, want 1", f.classifier.calls)
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("emails sent = %d, want 1", len(f.sender.sent))
	}
	for _, name := range []string{StepAIProcessing, StepAssignModerator, StepSendNotification} {
		if s, _ := second.Step(name); !s.Skipped {
			t.Errorf("step %s should be skipped on rerun", name)
		}
	}
	got, _ := f.tickets.Get(context.Background(), tk.ID)
	if got.TriageAttempts != 2 {
		t.Fatalf("triage attempts = %d", got.TriageAttempts)
	}
}

func TestRun_ClosedTicketIsNotTriaged(t *testing.T) {
	f := newFixture(classified("go"))
	f.user(t, "gopher@example.com", models.RoleModerator, "golang")
	tk := f.ticket(t)
	if _, err := f.tickets.UpdateStatus(context.Background(), tk.ID, models.StatusTodo, models.StatusDone); err != nil {
		t.Fatal(err)
	}

	out := f.triage(triage.PolicyFallback, notify.PolicyLog).Run(context.Background(), tk.ID)
	if out.Result != Partial || out.AssigneeID != "" || out.Notified {
		t.Fatalf("outcome = %+v", out)
	}
	for _, name := range []string{StepAIProcessing, StepApplyClassification, StepAssignModerator, StepSendNotification} {
		if s, ok := out.Step(name); !ok || !s.Skipped {
			t.Errorf("step %s = %+v, want skipped", name, s)
		}
	}
	if f.classifier.calls != 0 {
		t.Fatalf("classifier calls = %d, want 0", f.classifier.calls)
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("emails sent for a closed ticket: %+v", f.sender.sent)
	}
	got, _ := f.tickets.Get(context.Background(), tk.ID)
	if got.Status != models.StatusDone || got.AssignedTo != nil {
		t.Fatalf("closed ticket changed: %+v", got)
	}
}

func event(t *testing.T, name string, payload any) events.Event {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return events.Event{ID: "ev-1", Name: name, Payload: b, Attempts: 1}
}

func TestHandleTicketCreated_AcksFailures(t *testing.T) {
	f := newFixture(classified("go"))
	tr := f.triage(triage.PolicyFallback, notify.PolicyLog)

	err := tr.HandleTicketCreated(context.Background(), event(t, events.TicketCreated, events.TicketCreatedPayload{TicketID: "missing"}))
	if err != nil {
		t.Fatalf("failed outcome should be acked, got %v", err)
	}

	err = tr.HandleTicketCreated(context.Background(), events.Event{Name: events.TicketCreated, Payload: []byte(`{`)})
	if !events.IsPermanent(err) {
		t.Fatalf("malformed payload err = %v", err)
	}
}

func TestWelcome(t *testing.T) {
	sender := &fakeSender{}
	w := NewWelcome(sender)

	if err := w.Handle(context.Background(), event(t, events.UserSignup, events.UserSignupPayload{UserID: "u", Email: "new@example.com"})); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].To != "new@example.com" {
		t.Fatalf("sent = %+v", sender.sent)
	}

	sender.err = errors.New("smtp down")
	err := w.Handle(context.Background(), event(t, events.UserSignup, events.UserSignupPayload{Email: "b@example.com"}))
	if err == nil || events.IsPermanent(err) {
		t.Fatalf("send failure should be retryable, got %v", err)
	}
	if err := w.Handle(context.Background(), event(t, events.UserSignup, events.UserSignupPayload{})); !events.IsPermanent(err) {
		t.Fatalf("missing email err = %v", err)
	}
}
