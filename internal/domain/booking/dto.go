package booking

import (
	"time"

	"github.com/google/uuid"
)

// RequestSlotRequest is the payload of POST /slot-requests
type RequestSlotRequest struct {
	TeacherID       uuid.UUID `json:"teacher_id" validate:"required"`
	StudentID       uuid.UUID `json:"student_id,omitempty"`
	StartUTC        time.Time `json:"start_utc" validate:"required"`
	EndUTC          time.Time `json:"end_utc" validate:"required,gtfield=StartUTC"`
	EntitlementType string    `json:"entitlement_type" validate:"required,bookable"`
}

type DecideRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

type CancelRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

type NoShowRequest struct {
	Who string `json:"who" validate:"required,party"`
}

// ForceBookRequest is the admin payload of POST /api/admin/force-book
type ForceBookRequest struct {
	StudentID uuid.UUID `json:"student_id" validate:"required"`
	TeacherID uuid.UUID `json:"teacher_id" validate:"required"`
	StartUTC  time.Time `json:"start_utc" validate:"required"`
	EndUTC    time.Time `json:"end_utc" validate:"required,gtfield=StartUTC"`
	Category  string    `json:"category" validate:"required,bookable"`
}
