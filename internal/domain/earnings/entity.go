package earnings

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusVoided  Status = "voided"
)

// Record is the teacher's pay for one confirmed lesson
type Record struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	ClassID          uuid.UUID       `db:"class_id" json:"class_id"`
	TeacherID        uuid.UUID       `db:"teacher_id" json:"teacher_id"`
	StudentID        uuid.UUID       `db:"student_id" json:"student_id"`
	Category         string          `db:"category" json:"category"`
	HourlyRate       decimal.Decimal `db:"hourly_rate" json:"hourly_rate"`
	DurationMinutes  int             `db:"duration_minutes" json:"duration_minutes"`
	AmountMinor      int64           `db:"amount_minor" json:"amount_minor"`
	PlatformFeeMinor int64           `db:"platform_fee_minor" json:"platform_fee_minor"`
	Currency         string          `db:"currency" json:"currency"`
	Status           Status          `db:"status" json:"payout_status"`
	PaidAt           *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	PaidBy           uuid.NullUUID   `db:"paid_by" json:"paid_by,omitempty"`
	VoidedAt         *time.Time      `db:"voided_at" json:"voided_at,omitempty"`
	VoidReason       *string         `db:"void_reason" json:"void_reason,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// Rate is a teacher's hourly pay for one lesson category
type Rate struct {
	TeacherID  uuid.UUID       `db:"teacher_id" json:"teacher_id"`
	Category   string          `db:"category" json:"category"`
	HourlyRate decimal.Decimal `db:"hourly_rate" json:"hourly_rate"`
	Currency   string          `db:"currency" json:"currency"`
	IsDefault  bool            `db:"is_default" json:"is_default"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// Lesson carries what the calculator needs from a confirmed class
type Lesson struct {
	ClassID   uuid.UUID
	TeacherID uuid.UUID
	StudentID uuid.UUID
	Category  string
	StartsAt  time.Time
	EndsAt    time.Time
}

func (l Lesson) Duration() time.Duration { return l.EndsAt.Sub(l.StartsAt) }

// Filter narrows record listings and payroll exports.
// From/To apply to the lesson start time.
type Filter struct {
	TeacherID *uuid.UUID
	Status    *Status
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// PayrollLine is one CSV row of a payroll export
type PayrollLine struct {
	Record
	LessonStart time.Time `db:"lesson_start"`
}
