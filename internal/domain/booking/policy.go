package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/tutorhub/tutorhub-api/internal/pkg/identity"
)

var transitions = map[ClassStatus][]ClassStatus{
	ClassRequested: {ClassConfirmed, ClassCancelled},
	ClassConfirmed: {ClassCompleted, ClassCancelled, ClassNoShow},
}

// CanTransition reports whether a class may move from one status to another
func CanTransition(from, to ClassStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Outcome is what happens to the entitlement and earnings when a class ends early
type Outcome struct {
	Refund       bool
	VoidEarnings bool
}

// CancellationOutcome applies the cancellation policy. Unaccepted classes
// only ever hold a unit, which always goes back. A student cancelling a
// confirmed class inside the late window forfeits the unit and the teacher
// keeps the pay; every other initiator triggers a full refund.
func CancellationOutcome(role string, status ClassStatus, startsAt, now time.Time, lateWindow time.Duration) Outcome {
	if status == ClassRequested {
		return Outcome{Refund: true}
	}
	if role == identity.RoleStudent && startsAt.Sub(now) < lateWindow {
		return Outcome{}
	}
	return Outcome{Refund: true, VoidEarnings: true}
}

// NoShowOutcome maps the absent party to the resulting class status.
// The teacher is paid when the student fails to attend; a teacher no-show
// is treated like a teacher cancellation.
func NoShowOutcome(who Party) (ClassStatus, Outcome) {
	if who == PartyTeacher {
		return ClassCancelled, Outcome{Refund: true, VoidEarnings: true}
	}
	return ClassCompleted, Outcome{}
}

func authorizeParty(actor identity.Actor, c *Class) error {
	if actor.Privileged() {
		return nil
	}
	if _, ok := c.Party(actor.ID); !ok {
		return ErrForbidden
	}
	return nil
}

// authorizeNoShow lets the counterpart of the absent party, or an admin, report it
func authorizeNoShow(actor identity.Actor, c *Class, who Party) error {
	if actor.Privileged() {
		return nil
	}
	switch who {
	case PartyStudent:
		if actor.IsTeacher() && actor.ID == c.TeacherID {
			return nil
		}
	case PartyTeacher:
		if actor.IsStudent() && actor.ID == c.StudentID {
			return nil
		}
	}
	return ErrForbidden
}

func authorizeTeacher(actor identity.Actor, teacherID uuid.UUID) error {
	if actor.Privileged() || (actor.IsTeacher() && actor.ID == teacherID) {
		return nil
	}
	return ErrForbidden
}
