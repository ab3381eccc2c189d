package calendar

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxRange = 62 * 24 * time.Hour

type Kind string

const (
	KindLesson       Kind = "lesson"
	KindRequest      Kind = "request"
	KindAvailability Kind = "availability"
)

type View string

const (
	ViewDay   View = "day"
	ViewWeek  View = "week"
	ViewMonth View = "month"
)

// Range returns the UTC interval a view covers starting from the given day.
// Weeks start on Monday, months on the first.
func Range(view View, day time.Time) (time.Time, time.Time, error) {
	d := day.UTC()
	d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)

	switch view {
	case ViewDay:
		return d, d.AddDate(0, 0, 1), nil
	case ViewWeek:
		offset := (int(d.Weekday()) + 6) % 7
		start := d.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7), nil
	case ViewMonth:
		start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0), nil
	}
	return time.Time{}, time.Time{}, ErrInvalidView
}

// Event is one entry of a calendar projection
type Event struct {
	ID        uuid.UUID  `json:"id"`
	Kind      Kind       `json:"kind"`
	Status    string     `json:"status,omitempty"`
	Category  string     `json:"category,omitempty"`
	Start     time.Time  `json:"start_utc"`
	End       time.Time  `json:"end_utc"`
	TeacherID uuid.UUID  `json:"teacher_id"`
	StudentID *uuid.UUID `json:"student_id,omitempty"`
	SeriesID  *uuid.UUID `json:"series_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Color     string     `json:"color"`
	Earnings  *Earnings  `json:"earnings,omitempty"`
}

// Earnings is attached to lesson events for teachers and admins only
type Earnings struct {
	AmountMinor  int64           `json:"amount_minor"`
	HourlyRate   decimal.Decimal `json:"hourly_rate"`
	Currency     string          `json:"currency"`
	PayoutStatus string          `json:"payout_status"`
}

var colors = map[string]string{
	"lesson:requested": "#f9a825",
	"lesson:confirmed": "#2e7d32",
	"lesson:completed": "#1565c0",
	"lesson:no_show":   "#6a1b9a",
	"request:pending":  "#ffb300",
	"availability":     "#b0bec5",
}

// Color picks the presentation color of an event
func Color(kind Kind, status string) string {
	if kind == KindAvailability {
		return colors["availability"]
	}
	if c, ok := colors[string(kind)+":"+status]; ok {
		return c
	}
	return "#9e9e9e"
}

type lessonRow struct {
	ID        uuid.UUID     `db:"id"`
	StudentID uuid.UUID     `db:"student_id"`
	TeacherID uuid.UUID     `db:"teacher_id"`
	SeriesID  uuid.NullUUID `db:"series_id"`
	Category  string        `db:"category"`
	StartsAt  time.Time     `db:"starts_at"`
	EndsAt    time.Time     `db:"ends_at"`
	Status    string        `db:"status"`
}

func (l lessonRow) event() Event {
	student := l.StudentID
	ev := Event{
		ID:        l.ID,
		Kind:      KindLesson,
		Status:    l.Status,
		Category:  l.Category,
		Start:     l.StartsAt.UTC(),
		End:       l.EndsAt.UTC(),
		TeacherID: l.TeacherID,
		StudentID: &student,
		Color:     Color(KindLesson, l.Status),
	}
	if l.SeriesID.Valid {
		id := l.SeriesID.UUID
		ev.SeriesID = &id
	}
	return ev
}

type staffLessonRow struct {
	lessonRow
	AmountMinor  sql.NullInt64       `db:"amount_minor"`
	HourlyRate   decimal.NullDecimal `db:"hourly_rate"`
	Currency     sql.NullString      `db:"currency"`
	PayoutStatus sql.NullString      `db:"payout_status"`
}

func (l staffLessonRow) event() Event {
	ev := l.lessonRow.event()
	if l.AmountMinor.Valid {
		ev.Earnings = &Earnings{
			AmountMinor:  l.AmountMinor.Int64,
			HourlyRate:   l.HourlyRate.Decimal,
			Currency:     l.Currency.String,
			PayoutStatus: l.PayoutStatus.String,
		}
	}
	return ev
}

type requestRow struct {
	ID        uuid.UUID `db:"id"`
	StudentID uuid.UUID `db:"student_id"`
	TeacherID uuid.UUID `db:"teacher_id"`
	Category  string    `db:"category"`
	StartsAt  time.Time `db:"starts_at"`
	EndsAt    time.Time `db:"ends_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

func (r requestRow) event() Event {
	student := r.StudentID
	expires := r.ExpiresAt.UTC()
	return Event{
		ID:        r.ID,
		Kind:      KindRequest,
		Status:    "pending",
		Category:  r.Category,
		Start:     r.StartsAt.UTC(),
		End:       r.EndsAt.UTC(),
		TeacherID: r.TeacherID,
		StudentID: &student,
		ExpiresAt: &expires,
		Color:     Color(KindRequest, "pending"),
	}
}
