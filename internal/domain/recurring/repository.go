package recurring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

const seriesColumns = `id, student_id, teacher_id, category, day_of_week, start_minute, duration_minutes,
	start_date, end_date, status, payment_failure_count, created_by, created_at, updated_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateTx(ctx context.Context, tx *sqlx.Tx, s *Series) (*Series, error) {
	var out Series
	err := tx.GetContext(ctx, &out, `
		INSERT INTO recurrence_series (student_id, teacher_id, category, day_of_week, start_minute,
			duration_minutes, start_date, end_date, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'active', $9)
		RETURNING `+seriesColumns,
		s.StudentID, s.TeacherID, s.Category, s.DayOfWeek, s.StartMinute,
		s.DurationMinutes, s.StartDate, s.EndDate, s.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("%w: insert series: %v", ErrInternal, err)
	}
	return &out, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Series, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var s Series
	err := r.db.GetContext(ctx, &s, `SELECT `+seriesColumns+` FROM recurrence_series WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get series: %v", ErrInternal, err)
	}
	return &s, nil
}

func (r *Repository) LockTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Series, error) {
	var s Series
	err := tx.GetContext(ctx, &s, `SELECT `+seriesColumns+` FROM recurrence_series WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock series: %v", ErrInternal, err)
	}
	return &s, nil
}

// UpdateTx writes status and failure counter
func (r *Repository) UpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status Status, failures int) (*Series, error) {
	var s Series
	err := tx.GetContext(ctx, &s, `
		UPDATE recurrence_series SET status = $2, payment_failure_count = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+seriesColumns, id, string(status), failures)
	if err != nil {
		return nil, fmt.Errorf("%w: update series: %v", ErrInternal, err)
	}
	return &s, nil
}

func (r *Repository) ListActive(ctx context.Context) ([]Series, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var list []Series
	err := r.db.SelectContext(ctx, &list, `
		SELECT `+seriesColumns+` FROM recurrence_series
		WHERE status = 'active'
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list active series: %v", ErrInternal, err)
	}
	return list, nil
}

// ListForUser returns the series the user takes part in, newest first
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]Series, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var list []Series
	err := r.db.SelectContext(ctx, &list, `
		SELECT `+seriesColumns+` FROM recurrence_series
		WHERE student_id = $1 OR teacher_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list series: %v", ErrInternal, err)
	}
	return list, nil
}

// LatestOccurrence returns the start of the last generated class, in any status
func (r *Repository) LatestOccurrence(ctx context.Context, seriesID uuid.UUID) (*time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var latest sql.NullTime
	err := r.db.GetContext(ctx, &latest, `SELECT MAX(starts_at) FROM classes WHERE series_id = $1`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("%w: latest occurrence: %v", ErrInternal, err)
	}
	if !latest.Valid {
		return nil, nil
	}
	t := latest.Time.UTC()
	return &t, nil
}

// OccurrenceStarts returns the unix start of every generated class at or after from
func (r *Repository) OccurrenceStarts(ctx context.Context, seriesID uuid.UUID, from time.Time) (map[int64]bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var starts []time.Time
	err := r.db.SelectContext(ctx, &starts, `
		SELECT starts_at FROM classes WHERE series_id = $1 AND starts_at >= $2
	`, seriesID, from)
	if err != nil {
		return nil, fmt.Errorf("%w: occurrence starts: %v", ErrInternal, err)
	}
	out := make(map[int64]bool, len(starts))
	for _, t := range starts {
		out[t.Unix()] = true
	}
	return out, nil
}

// UpcomingOccurrencesTx lists requested or confirmed classes of the series
// that start after now
func (r *Repository) UpcomingOccurrencesTx(ctx context.Context, tx *sqlx.Tx, seriesID uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := tx.SelectContext(ctx, &ids, `
		SELECT id FROM classes
		WHERE series_id = $1 AND status IN ('requested', 'confirmed') AND starts_at > $2
		ORDER BY starts_at
	`, seriesID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: upcoming occurrences: %v", ErrInternal, err)
	}
	return ids, nil
}
