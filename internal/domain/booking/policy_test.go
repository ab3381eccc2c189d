package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tutorhub/tutorhub-api/internal/pkg/identity"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]ClassStatus]bool{
		{ClassRequested, ClassConfirmed}: true,
		{ClassRequested, ClassCancelled}: true,
		{ClassConfirmed, ClassCompleted}: true,
		{ClassConfirmed, ClassCancelled}: true,
		{ClassConfirmed, ClassNoShow}:    true,
	}
	all := []ClassStatus{ClassRequested, ClassConfirmed, ClassCancelled, ClassCompleted, ClassNoShow}

	for _, from := range all {
		for _, to := range all {
			if got := CanTransition(from, to); got != allowed[[2]ClassStatus{from, to}] {
				t.Errorf("CanTransition(%s, %s) = %v", from, to, got)
			}
		}
	}
}

func TestTerminalStatesAreClosed(t *testing.T) {
	for _, s := range []ClassStatus{ClassCancelled, ClassCompleted, ClassNoShow} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
		for _, to := range []ClassStatus{ClassRequested, ClassConfirmed, ClassCancelled, ClassCompleted} {
			if CanTransition(s, to) {
				t.Errorf("terminal %s must not move to %s", s, to)
			}
		}
	}
}

func TestCancellationOutcome(t *testing.T) {
	start := time.Date(2026, 11, 2, 15, 0, 0, 0, time.UTC)
	window := 24 * time.Hour

	tests := []struct {
		name   string
		role   string
		status ClassStatus
		now    time.Time
		want   Outcome
	}{
		{"student 30h before", identity.RoleStudent, ClassConfirmed, start.Add(-30 * time.Hour), Outcome{Refund: true, VoidEarnings: true}},
		{"student exactly 24h before", identity.RoleStudent, ClassConfirmed, start.Add(-24 * time.Hour), Outcome{Refund: true, VoidEarnings: true}},
		{"student 2h before", identity.RoleStudent, ClassConfirmed, start.Add(-2 * time.Hour), Outcome{}},
		{"teacher 1h before", identity.RoleTeacher, ClassConfirmed, start.Add(-time.Hour), Outcome{Refund: true, VoidEarnings: true}},
		{"admin after start", identity.RoleAdmin, ClassConfirmed, start.Add(time.Hour), Outcome{Refund: true, VoidEarnings: true}},
		{"system late", identity.RoleSystem, ClassConfirmed, start.Add(-time.Minute), Outcome{Refund: true, VoidEarnings: true}},
		{"student on unaccepted request", identity.RoleStudent, ClassRequested, start.Add(-time.Hour), Outcome{Refund: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CancellationOutcome(tt.role, tt.status, start, tt.now, window); got != tt.want {
				t.Fatalf("CancellationOutcome() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNoShowOutcome(t *testing.T) {
	status, out := NoShowOutcome(PartyStudent)
	if status != ClassCompleted || out.Refund || out.VoidEarnings {
		t.Fatalf("student no-show: got %s %+v", status, out)
	}
	status, out = NoShowOutcome(PartyTeacher)
	if status != ClassCancelled || !out.Refund || !out.VoidEarnings {
		t.Fatalf("teacher no-show: got %s %+v", status, out)
	}
}

func TestAuthorizeNoShow(t *testing.T) {
	c := &Class{StudentID: uuid.New(), TeacherID: uuid.New()}

	tests := []struct {
		name  string
		actor identity.Actor
		who   Party
		ok    bool
	}{
		{"teacher reports student", identity.Teacher(c.TeacherID), PartyStudent, true},
		{"student reports teacher", identity.Student(c.StudentID), PartyTeacher, true},
		{"student reports self", identity.Student(c.StudentID), PartyStudent, false},
		{"teacher reports self", identity.Teacher(c.TeacherID), PartyTeacher, false},
		{"other teacher", identity.Teacher(uuid.New()), PartyStudent, false},
		{"admin", identity.Admin(uuid.New()), PartyTeacher, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authorizeNoShow(tt.actor, c, tt.who)
			if tt.ok && err != nil {
				t.Fatalf("expected allowed, got %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrForbidden) {
				t.Fatalf("expected ErrForbidden, got %v", err)
			}
		})
	}
}

func TestAuthorizeParty(t *testing.T) {
	c := &Class{StudentID: uuid.New(), TeacherID: uuid.New()}
	if err := authorizeParty(identity.Student(c.StudentID), c); err != nil {
		t.Fatalf("student party rejected: %v", err)
	}
	if err := authorizeParty(identity.System(), c); err != nil {
		t.Fatalf("system rejected: %v", err)
	}
	if err := authorizeParty(identity.Student(uuid.New()), c); !errors.Is(err, ErrForbidden) {
		t.Fatalf("outsider allowed: %v", err)
	}
}

func TestSlotRequestExpired(t *testing.T) {
	created := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	r := &SlotRequest{ExpiresAt: created.Add(15 * time.Minute)}
	if r.Expired(created.Add(14 * time.Minute)) {
		t.Fatal("request should still be open")
	}
	if !r.Expired(created.Add(15 * time.Minute)) {
		t.Fatal("request should be expired at its deadline")
	}
}
