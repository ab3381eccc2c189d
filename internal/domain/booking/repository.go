package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

const classColumns = `id, student_id, teacher_id, slot_request_id, entitlement_id, hold_reference, earnings_id,
	series_id, category, starts_at, ends_at, status, cancelled_by, cancel_reason, cancelled_at,
	no_show_party, force_booked, created_at, updated_at`

const requestColumns = `id, student_id, teacher_id, class_id, entitlement_id, hold_reference, category,
	starts_at, ends_at, status, expires_at, decline_reason, decided_at, created_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// OverlapTx reports whether [start, end) collides with a requested or
// confirmed class of the teacher or of the student. Group lessons may share
// an identical slot with other group lessons of the same teacher.
// The student's bookings are serialized until commit; the teacher side is
// covered by the caller's window lock.
func (r *Repository) OverlapTx(ctx context.Context, tx *sqlx.Tx, in SlotInput, excludeClassID uuid.UUID) (bool, error) {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "booking:student:"+in.StudentID.String()); err != nil {
		return false, fmt.Errorf("%w: advisory lock: %v", ErrInternal, err)
	}

	var overlaps bool
	err := tx.GetContext(ctx, &overlaps, `
		SELECT EXISTS (
			SELECT 1 FROM classes
			WHERE status IN ('requested', 'confirmed')
			  AND id <> $6
			  AND starts_at < $4 AND ends_at > $3
			  AND (
			        (teacher_id = $1 AND NOT (
			            $5 = 'group' AND category = 'group' AND starts_at = $3 AND ends_at = $4
			        ))
			     OR student_id = $2
			  )
		)
	`, in.TeacherID, in.StudentID, in.Start, in.End, in.Category, excludeClassID)
	if err != nil {
		return false, fmt.Errorf("%w: overlap check: %v", ErrInternal, err)
	}
	return overlaps, nil
}

func (r *Repository) InsertClassTx(ctx context.Context, tx *sqlx.Tx, c *Class) (*Class, error) {
	var out Class
	err := tx.GetContext(ctx, &out, `
		INSERT INTO classes (id, student_id, teacher_id, slot_request_id, entitlement_id, hold_reference,
			series_id, category, starts_at, ends_at, status, force_booked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+classColumns,
		c.ID, c.StudentID, c.TeacherID, c.SlotRequestID, c.EntitlementID, c.HoldReference,
		c.SeriesID, c.Category, c.StartsAt, c.EndsAt, string(c.Status), c.ForceBooked)
	if err != nil {
		return nil, fmt.Errorf("%w: insert class: %v", ErrInternal, err)
	}
	return &out, nil
}

func (r *Repository) InsertRequestTx(ctx context.Context, tx *sqlx.Tx, req *SlotRequest) (*SlotRequest, error) {
	var out SlotRequest
	err := tx.GetContext(ctx, &out, `
		INSERT INTO slot_requests (id, student_id, teacher_id, class_id, entitlement_id, hold_reference,
			category, starts_at, ends_at, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+requestColumns,
		req.ID, req.StudentID, req.TeacherID, req.ClassID, req.EntitlementID, req.HoldReference,
		req.Category, req.StartsAt, req.EndsAt, string(req.Status), req.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("%w: insert slot request: %v", ErrInternal, err)
	}
	return &out, nil
}

func (r *Repository) LockRequestTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*SlotRequest, error) {
	var req SlotRequest
	err := tx.GetContext(ctx, &req, `SELECT `+requestColumns+` FROM slot_requests WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock slot request: %v", ErrInternal, err)
	}
	return &req, nil
}

func (r *Repository) LockClassTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Class, error) {
	var c Class
	err := tx.GetContext(ctx, &c, `SELECT `+classColumns+` FROM classes WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock class: %v", ErrInternal, err)
	}
	return &c, nil
}

// DecideRequestTx closes a pending request
func (r *Repository) DecideRequestTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status RequestStatus, reason *string, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE slot_requests SET status = $2, decline_reason = $3, decided_at = $4
		WHERE id = $1 AND status = 'pending'
	`, id, string(status), reason, at)
	if err != nil {
		return fmt.Errorf("%w: update slot request: %v", ErrInternal, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return ErrInvalidTransition
	}
	return nil
}

// ConfirmClassTx moves a requested class to confirmed and links its earnings
func (r *Repository) ConfirmClassTx(ctx context.Context, tx *sqlx.Tx, id, earningsID uuid.UUID) (*Class, error) {
	var c Class
	err := tx.GetContext(ctx, &c, `
		UPDATE classes SET status = 'confirmed', earnings_id = $2, updated_at = now()
		WHERE id = $1 AND status = 'requested'
		RETURNING `+classColumns,
		id, earningsID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("%w: confirm class: %v", ErrInternal, err)
	}
	return &c, nil
}

// CloseClassTx writes a terminal status. from guards against a concurrent change.
func (r *Repository) CloseClassTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to ClassStatus, by string, reason, noShow *string, at time.Time) (*Class, error) {
	var cancelledBy *string
	var cancelledAt *time.Time
	if to == ClassCancelled {
		cancelledBy, cancelledAt = &by, &at
	}

	var c Class
	err := tx.GetContext(ctx, &c, `
		UPDATE classes
		SET status = $3, cancelled_by = $4, cancel_reason = $5, cancelled_at = $6,
		    no_show_party = $7, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+classColumns,
		id, string(from), string(to), cancelledBy, reason, cancelledAt, noShow)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("%w: close class: %v", ErrInternal, err)
	}
	return &c, nil
}

func (r *Repository) GetClass(ctx context.Context, id uuid.UUID) (*Class, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c Class
	err := r.db.GetContext(ctx, &c, `SELECT `+classColumns+` FROM classes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get class: %v", ErrInternal, err)
	}
	return &c, nil
}

func (r *Repository) GetRequest(ctx context.Context, id uuid.UUID) (*SlotRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var req SlotRequest
	err := r.db.GetContext(ctx, &req, `SELECT `+requestColumns+` FROM slot_requests WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get slot request: %v", ErrInternal, err)
	}
	return &req, nil
}

// ListPendingRequests returns a teacher's open requests, oldest first
func (r *Repository) ListPendingRequests(ctx context.Context, teacherID uuid.UUID) ([]SlotRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	items := []SlotRequest{}
	err := r.db.SelectContext(ctx, &items, `
		SELECT `+requestColumns+`
		FROM slot_requests
		WHERE teacher_id = $1 AND status = 'pending'
		ORDER BY created_at
	`, teacherID)
	if err != nil {
		return nil, fmt.Errorf("%w: list slot requests: %v", ErrInternal, err)
	}
	return items, nil
}

func (r *Repository) ListClasses(ctx context.Context, f ListFilter) ([]Class, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := []string{"1=1"}
	args := []interface{}{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.StudentID != nil {
		add("student_id = $%d", *f.StudentID)
	}
	if f.TeacherID != nil {
		add("teacher_id = $%d", *f.TeacherID)
	}
	if f.SeriesID != nil {
		add("series_id = $%d", *f.SeriesID)
	}
	if len(f.Status) > 0 {
		statuses := make([]string, len(f.Status))
		for i, s := range f.Status {
			statuses[i] = string(s)
		}
		add("status = ANY($%d)", pq.Array(statuses))
	}
	if f.From != nil {
		add("starts_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("starts_at < $%d", *f.To)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM classes WHERE `+cond, args...); err != nil {
		return nil, 0, fmt.Errorf("%w: count classes: %v", ErrInternal, err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM classes
		WHERE %s
		ORDER BY starts_at, id
		LIMIT $%d OFFSET $%d
	`, classColumns, cond, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	classes := []Class{}
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("%w: list classes: %v", ErrInternal, err)
	}
	return classes, total, nil
}
