package availability

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

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// LockMode selects how LockCoveringTx treats windows locked by others
type LockMode int

const (
	// SkipLocked passes over windows held by in-flight transactions, so
	// contention surfaces as ErrUnavailable instead of blocking.
	SkipLocked LockMode = iota
	// Wait blocks until the covering window is free.
	Wait
)

// LockCoveringTx locks a window of the teacher that covers [start, end)
// and holds it until the transaction ends.
func (r *Repository) LockCoveringTx(ctx context.Context, tx *sqlx.Tx, teacherID uuid.UUID, start, end time.Time, mode LockMode) (*Window, error) {
	lock := "FOR UPDATE SKIP LOCKED"
	if mode == Wait {
		lock = "FOR UPDATE"
	}

	var w Window
	err := tx.GetContext(ctx, &w, `
		SELECT id, teacher_id, starts_at, ends_at, created_at
		FROM availability_windows
		WHERE teacher_id = $1 AND starts_at <= $2 AND ends_at >= $3
		ORDER BY starts_at
		LIMIT 1
		`+lock, teacherID, start, end)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock window: %v", ErrInternal, err)
	}
	if !w.Covers(start, end) {
		return nil, ErrUnavailable
	}
	return &w, nil
}

func (r *Repository) CreateTx(ctx context.Context, tx *sqlx.Tx, teacherID uuid.UUID, start, end time.Time) (*Window, error) {
	// serialize window edits per teacher
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "availability:"+teacherID.String()); err != nil {
		return nil, fmt.Errorf("%w: advisory lock: %v", ErrInternal, err)
	}

	var overlaps bool
	if err := tx.GetContext(ctx, &overlaps, `
		SELECT EXISTS (
			SELECT 1 FROM availability_windows
			WHERE teacher_id = $1 AND starts_at < $3 AND ends_at > $2
		)
	`, teacherID, start, end); err != nil {
		return nil, fmt.Errorf("%w: overlap check: %v", ErrInternal, err)
	}
	if overlaps {
		return nil, ErrOverlap
	}

	var w Window
	err := tx.GetContext(ctx, &w, `
		INSERT INTO availability_windows (teacher_id, starts_at, ends_at)
		VALUES ($1, $2, $3)
		RETURNING id, teacher_id, starts_at, ends_at, created_at
	`, teacherID, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: insert window: %v", ErrInternal, err)
	}
	return &w, nil
}

// DeleteTx removes a window. Lessons already placed inside it are kept.
func (r *Repository) DeleteTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Window, error) {
	var w Window
	err := tx.GetContext(ctx, &w, `
		DELETE FROM availability_windows
		WHERE id = $1
		RETURNING id, teacher_id, starts_at, ends_at, created_at
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: delete window: %v", ErrInternal, err)
	}
	return &w, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Window, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var w Window
	err := r.db.GetContext(ctx, &w, `
		SELECT id, teacher_id, starts_at, ends_at, created_at
		FROM availability_windows WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get window: %v", ErrInternal, err)
	}
	return &w, nil
}

// ListByTeacher returns windows intersecting [from, to)
func (r *Repository) ListByTeacher(ctx context.Context, teacherID uuid.UUID, from, to time.Time) ([]Window, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	windows := []Window{}
	err := r.db.SelectContext(ctx, &windows, `
		SELECT id, teacher_id, starts_at, ends_at, created_at
		FROM availability_windows
		WHERE teacher_id = $1 AND starts_at < $3 AND ends_at > $2
		ORDER BY starts_at
	`, teacherID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: list windows: %v", ErrInternal, err)
	}
	return windows, nil
}
