package booking

import (
	"time"

	"github.com/google/uuid"
)

type ClassStatus string

const (
	ClassRequested ClassStatus = "requested"
	ClassConfirmed ClassStatus = "confirmed"
	ClassCancelled ClassStatus = "cancelled"
	ClassCompleted ClassStatus = "completed"
	ClassNoShow    ClassStatus = "no_show"
)

// Terminal reports whether no further transition is allowed
func (s ClassStatus) Terminal() bool {
	return s == ClassCancelled || s == ClassCompleted || s == ClassNoShow
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
	RequestExpired  RequestStatus = "expired"
)

// Party names a participant of a class
type Party string

const (
	PartyStudent Party = "student"
	PartyTeacher Party = "teacher"
)

// Class is one lesson occurrence between a teacher and a student
type Class struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	StudentID     uuid.UUID     `db:"student_id" json:"student_id"`
	TeacherID     uuid.UUID     `db:"teacher_id" json:"teacher_id"`
	SlotRequestID uuid.NullUUID `db:"slot_request_id" json:"slot_request_id,omitempty"`
	EntitlementID uuid.NullUUID `db:"entitlement_id" json:"entitlement_id,omitempty"`
	HoldReference *string       `db:"hold_reference" json:"-"`
	EarningsID    uuid.NullUUID `db:"earnings_id" json:"earnings_id,omitempty"`
	SeriesID      uuid.NullUUID `db:"series_id" json:"series_id,omitempty"`
	Category      string        `db:"category" json:"category"`
	StartsAt      time.Time     `db:"starts_at" json:"starts_at"`
	EndsAt        time.Time     `db:"ends_at" json:"ends_at"`
	Status        ClassStatus   `db:"status" json:"status"`
	CancelledBy   *string       `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancelReason  *string       `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CancelledAt   *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
	NoShowParty   *string       `db:"no_show_party" json:"no_show_party,omitempty"`
	ForceBooked   bool          `db:"force_booked" json:"force_booked"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// Party reports which side of the class the user is on
func (c *Class) Party(userID uuid.UUID) (Party, bool) {
	switch userID {
	case c.StudentID:
		return PartyStudent, true
	case c.TeacherID:
		return PartyTeacher, true
	}
	return "", false
}

// SlotRequest is a student's proposal for a teacher's time, open for a short window
type SlotRequest struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	StudentID     uuid.UUID     `db:"student_id" json:"student_id"`
	TeacherID     uuid.UUID     `db:"teacher_id" json:"teacher_id"`
	ClassID       uuid.UUID     `db:"class_id" json:"class_id"`
	EntitlementID uuid.NullUUID `db:"entitlement_id" json:"entitlement_id,omitempty"`
	HoldReference string        `db:"hold_reference" json:"-"`
	Category      string        `db:"category" json:"category"`
	StartsAt      time.Time     `db:"starts_at" json:"starts_at"`
	EndsAt        time.Time     `db:"ends_at" json:"ends_at"`
	Status        RequestStatus `db:"status" json:"status"`
	ExpiresAt     time.Time     `db:"expires_at" json:"expires_at"`
	DeclineReason *string       `db:"decline_reason" json:"decline_reason,omitempty"`
	DecidedAt     *time.Time    `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// Expired reports whether the request can no longer be accepted at now
func (r *SlotRequest) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// SlotInput describes a booking attempt
type SlotInput struct {
	StudentID uuid.UUID
	TeacherID uuid.UUID
	Start     time.Time
	End       time.Time
	Category  string
	SeriesID  uuid.NullUUID
}

// RequestResult is returned to the student after a successful request
type RequestResult struct {
	SlotRequestID     uuid.UUID     `json:"slot_request_id"`
	EntitlementHoldID uuid.NullUUID `json:"entitlement_hold_id"`
	ClassID           uuid.UUID     `json:"class_id"`
	ExpiresAt         time.Time     `json:"expires_at"`
}

// ListFilter narrows ListClasses. Party scoping is applied by the service.
type ListFilter struct {
	StudentID *uuid.UUID
	TeacherID *uuid.UUID
	SeriesID  *uuid.UUID
	Status    []ClassStatus
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// holdReference derives the ledger reference of a slot request's hold
func holdReference(slotRequestID uuid.UUID) string {
	return "slot:" + slotRequestID.String()
}
