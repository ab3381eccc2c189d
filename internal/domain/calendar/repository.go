package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 5 * time.Second

// Repository reads the tables the projection is built from. It never writes.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// StudentLessons returns the student's live lessons. Requested classes whose
// slot request lapsed before now are left out even if not yet swept. It does
// not touch the earnings table.
func (r *Repository) StudentLessons(ctx context.Context, studentID uuid.UUID, from, to, now time.Time) ([]lessonRow, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []lessonRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT c.id, c.student_id, c.teacher_id, c.series_id, c.category, c.starts_at, c.ends_at, c.status
		FROM classes c
		LEFT JOIN slot_requests sr ON sr.id = c.slot_request_id
		WHERE c.student_id = $1
		  AND c.status IN ('requested', 'confirmed', 'completed')
		  AND c.starts_at < $3 AND c.ends_at > $2
		  AND (c.status <> 'requested' OR (sr.status = 'pending' AND sr.expires_at > $4))
		ORDER BY c.starts_at
	`, studentID, from, to, now)
	if err != nil {
		return nil, fmt.Errorf("%w: student lessons: %v", ErrInternal, err)
	}
	return rows, nil
}

// StaffLessons returns confirmed and finished lessons the user takes part in,
// joined with their earnings
func (r *Repository) StaffLessons(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]staffLessonRow, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []staffLessonRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT c.id, c.student_id, c.teacher_id, c.series_id, c.category, c.starts_at, c.ends_at, c.status,
		       e.amount_minor, e.hourly_rate, e.currency, e.status AS payout_status
		FROM classes c
		LEFT JOIN earnings_records e ON e.id = c.earnings_id
		WHERE (c.teacher_id = $1 OR c.student_id = $1)
		  AND c.status IN ('confirmed', 'completed')
		  AND c.starts_at < $3 AND c.ends_at > $2
		ORDER BY c.starts_at
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: staff lessons: %v", ErrInternal, err)
	}
	return rows, nil
}

// PendingRequests returns open, unexpired slot requests involving the user
func (r *Repository) PendingRequests(ctx context.Context, userID uuid.UUID, from, to, now time.Time) ([]requestRow, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []requestRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, student_id, teacher_id, category, starts_at, ends_at, expires_at
		FROM slot_requests
		WHERE (teacher_id = $1 OR student_id = $1)
		  AND status = 'pending'
		  AND expires_at > $4
		  AND starts_at < $3 AND ends_at > $2
		ORDER BY starts_at
	`, userID, from, to, now)
	if err != nil {
		return nil, fmt.Errorf("%w: pending requests: %v", ErrInternal, err)
	}
	return rows, nil
}
