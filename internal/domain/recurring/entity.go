package recurring

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
)

// Series is a weekly booking rule for one student and teacher. Day, minute
// and dates are all UTC.
type Series struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	StudentID           uuid.UUID  `db:"student_id" json:"student_id"`
	TeacherID           uuid.UUID  `db:"teacher_id" json:"teacher_id"`
	Category            string     `db:"category" json:"category"`
	DayOfWeek           int        `db:"day_of_week" json:"day_of_week"`
	StartMinute         int        `db:"start_minute" json:"start_minute"`
	DurationMinutes     int        `db:"duration_minutes" json:"duration_minutes"`
	StartDate           time.Time  `db:"start_date" json:"start_date"`
	EndDate             *time.Time `db:"end_date" json:"end_date,omitempty"`
	Status              Status     `db:"status" json:"status"`
	PaymentFailureCount int        `db:"payment_failure_count" json:"payment_failure_count"`
	CreatedBy           uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

func (s *Series) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Occurrences returns up to n weekly start times strictly after `after`,
// beginning no earlier than the series start date and ending on the end date
// inclusive.
func (s *Series) Occurrences(after time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	after = after.UTC()

	day := dateOf(s.StartDate)
	if a := dateOf(after); a.After(day) {
		day = a
	}
	shift := (s.DayOfWeek - int(day.Weekday()) + 7) % 7
	day = day.AddDate(0, 0, shift)

	var out []time.Time
	for len(out) < n {
		if s.EndDate != nil && day.After(dateOf(*s.EndDate)) {
			break
		}
		start := day.Add(time.Duration(s.StartMinute) * time.Minute)
		if start.After(after) {
			out = append(out, start)
		}
		day = day.AddDate(0, 0, 7)
	}
	return out
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CreateInput describes a new series
type CreateInput struct {
	StudentID       uuid.UUID
	TeacherID       uuid.UUID
	Category        string
	DayOfWeek       int
	StartMinute     int
	DurationMinutes int
	StartDate       time.Time
	EndDate         *time.Time
}

// Skipped is a week the generator could not book
type Skipped struct {
	StartsAt time.Time `json:"starts_at"`
	Reason   string    `json:"reason"`
}

// Generation reports the outcome of a create or generate run
type Generation struct {
	Series        *Series     `json:"series"`
	OccurrenceIDs []uuid.UUID `json:"occurrence_ids"`
	Skipped       []Skipped   `json:"skipped,omitempty"`
}

// FailureResult is returned when a payment failure is recorded
type FailureResult struct {
	Series       *Series     `json:"series"`
	Cancelled    bool        `json:"cancelled"`
	FailureCount int         `json:"failure_count"`
	CancelledIDs []uuid.UUID `json:"cancelled_class_ids,omitempty"`
}
