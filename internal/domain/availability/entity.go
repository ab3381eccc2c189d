package availability

import (
	"time"

	"github.com/google/uuid"
)

// Window is a teacher-declared open interval; several lessons may fit inside one
type Window struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TeacherID uuid.UUID `db:"teacher_id" json:"teacher_id"`
	StartsAt  time.Time `db:"starts_at" json:"starts_at"`
	EndsAt    time.Time `db:"ends_at" json:"ends_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Covers reports whether [start, end) lies inside the window
func (w *Window) Covers(start, end time.Time) bool {
	return !start.Before(w.StartsAt) && !end.After(w.EndsAt)
}
