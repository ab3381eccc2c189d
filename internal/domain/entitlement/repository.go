package entitlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tutorhub/tutorhub-api/internal/pkg/database"
)

const queryTimeout = 3 * time.Second

const entitlementColumns = `id, student_id, category, total, remaining, valid_from, valid_until, expires_at, source, created_at, updated_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// HoldTx takes one unit from the student's soonest-expiring usable entitlement.
// Rows locked by concurrent holds are skipped rather than waited on.
// Re-holding with a reference that already holds a unit returns the same entitlement.
func (r *Repository) HoldTx(ctx context.Context, tx *sqlx.Tx, studentID uuid.UUID, category Category, reference string, at time.Time) (uuid.UUID, error) {
	if !category.Valid() {
		return uuid.Nil, ErrInvalidCategory
	}

	var held uuid.UUID
	err := tx.GetContext(ctx, &held, `
		SELECT entitlement_id
		FROM entitlement_ledger
		WHERE student_id = $1 AND kind = 'hold' AND reference = $2 AND status <> 'failed'
		LIMIT 1
	`, studentID, reference)
	if err == nil {
		return held, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("%w: lookup hold: %v", ErrInternal, err)
	}

	var id uuid.UUID
	err = tx.GetContext(ctx, &id, `
		SELECT id
		FROM entitlements
		WHERE student_id = $1
		  AND category = $2
		  AND remaining > 0
		  AND (valid_from IS NULL OR valid_from <= $3)
		  AND (valid_until IS NULL OR valid_until > $3)
		  AND (expires_at IS NULL OR expires_at > $3)
		ORDER BY COALESCE(expires_at, valid_until, 'infinity'::timestamptz), created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, studentID, string(category), at)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrNoEntitlementAvailable
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: select entitlement: %v", ErrInternal, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE entitlements SET remaining = remaining - 1, updated_at = now()
		WHERE id = $1
	`, id); err != nil {
		return uuid.Nil, fmt.Errorf("%w: decrement: %v", ErrInternal, err)
	}

	if err := r.insertEntry(ctx, tx, id, studentID, KindHold, StatusPending, -1, reference, nil); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// ConfirmTx flips the pending hold to confirmed. Confirming twice is a no-op.
func (r *Repository) ConfirmTx(ctx context.Context, tx *sqlx.Tx, entitlementID uuid.UUID, reference string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE entitlement_ledger SET status = 'confirmed', updated_at = now()
		WHERE entitlement_id = $1 AND kind = 'hold' AND reference = $2 AND status = 'pending'
	`, entitlementID, reference)
	if err != nil {
		return fmt.Errorf("%w: confirm hold: %v", ErrInternal, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	status, err := r.holdStatus(ctx, tx, entitlementID, reference)
	if err != nil {
		return err
	}
	switch status {
	case StatusConfirmed:
		return nil
	case StatusFailed:
		return ErrHoldReleased
	default:
		return ErrHoldNotFound
	}
}

// RefundTx gives back the unit taken by the hold with the given reference.
// It ignores expiry and is idempotent per (entitlement, reference).
func (r *Repository) RefundTx(ctx context.Context, tx *sqlx.Tx, entitlementID uuid.UUID, reference, reason string) error {
	var ent struct {
		Total     int `db:"total"`
		Remaining int `db:"remaining"`
	}
	err := tx.GetContext(ctx, &ent, `SELECT total, remaining FROM entitlements WHERE id = $1 FOR UPDATE`, entitlementID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: lock entitlement: %v", ErrInternal, err)
	}

	var refunded bool
	if err := tx.GetContext(ctx, &refunded, `
		SELECT EXISTS (
			SELECT 1 FROM entitlement_ledger
			WHERE entitlement_id = $1 AND kind = 'refund' AND reference = $2
		)
	`, entitlementID, reference); err != nil {
		return fmt.Errorf("%w: lookup refund: %v", ErrInternal, err)
	}
	if refunded {
		return nil
	}

	if _, err := r.holdStatus(ctx, tx, entitlementID, reference); err != nil {
		return err
	}
	if ent.Remaining >= ent.Total {
		return ErrOverRefund
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE entitlements SET remaining = remaining + 1, updated_at = now()
		WHERE id = $1
	`, entitlementID); err != nil {
		return fmt.Errorf("%w: increment: %v", ErrInternal, err)
	}

	var studentID uuid.UUID
	if err := tx.GetContext(ctx, &studentID, `SELECT student_id FROM entitlements WHERE id = $1`, entitlementID); err != nil {
		return fmt.Errorf("%w: load student: %v", ErrInternal, err)
	}

	if err := r.insertEntry(ctx, tx, entitlementID, studentID, KindRefund, StatusConfirmed, 1, reference, &reason); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE entitlement_ledger SET status = 'failed', updated_at = now()
		WHERE entitlement_id = $1 AND kind = 'hold' AND reference = $2 AND status = 'pending'
	`, entitlementID, reference); err != nil {
		return fmt.Errorf("%w: fail hold: %v", ErrInternal, err)
	}
	return nil
}

// CreateTx inserts a granted entitlement and its grant entry
func (r *Repository) CreateTx(ctx context.Context, tx *sqlx.Tx, in GrantInput) (*Entitlement, error) {
	var exists bool
	if err := tx.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM entitlement_ledger
			WHERE student_id = $1 AND kind = 'grant' AND reference = $2
		)
	`, in.StudentID, in.Reference); err != nil {
		return nil, fmt.Errorf("%w: lookup grant: %v", ErrInternal, err)
	}
	if exists {
		return nil, ErrReferenceReused
	}

	var e Entitlement
	err := tx.GetContext(ctx, &e, `
		INSERT INTO entitlements (student_id, category, total, remaining, valid_from, valid_until, expires_at, source)
		VALUES ($1, $2, $3, $3, $4, $5, $6, $7)
		RETURNING `+entitlementColumns,
		in.StudentID, string(in.Category), in.Quantity, in.ValidFrom, in.ValidUntil, in.ExpiresAt, in.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: insert entitlement: %v", ErrInternal, err)
	}

	if err := r.insertEntry(ctx, tx, e.ID, e.StudentID, KindGrant, StatusConfirmed, in.Quantity, in.Reference, nil); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Entitlement, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var e Entitlement
	err := r.db.GetContext(ctx, &e, `SELECT `+entitlementColumns+` FROM entitlements WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get entitlement: %v", ErrInternal, err)
	}
	return &e, nil
}

func (r *Repository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]Entitlement, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	items := []Entitlement{}
	err := r.db.SelectContext(ctx, &items, `
		SELECT `+entitlementColumns+`
		FROM entitlements
		WHERE student_id = $1
		ORDER BY created_at DESC
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("%w: list entitlements: %v", ErrInternal, err)
	}
	return items, nil
}

func (r *Repository) ListEntries(ctx context.Context, studentID uuid.UUID, limit, offset int) ([]LedgerEntry, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM entitlement_ledger WHERE student_id = $1`, studentID); err != nil {
		return nil, 0, fmt.Errorf("%w: count entries: %v", ErrInternal, err)
	}

	entries := []LedgerEntry{}
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, entitlement_id, student_id, kind, status, delta, reference, reason, created_at, updated_at
		FROM entitlement_ledger
		WHERE student_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, studentID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list entries: %v", ErrInternal, err)
	}
	return entries, total, nil
}

// Balance recomputes the counter from the ledger for reconciliation
func (r *Repository) Balance(ctx context.Context, entitlementID uuid.UUID) (*Balance, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var b Balance
	err := r.db.GetContext(ctx, &b, `
		SELECT e.id AS entitlement_id, e.total, e.remaining,
		       COALESCE(SUM(CASE WHEN l.kind = 'hold' THEN 1 ELSE 0 END), 0) AS holds,
		       COALESCE(SUM(CASE WHEN l.kind = 'refund' AND l.status = 'confirmed' THEN 1 ELSE 0 END), 0) AS refunds
		FROM entitlements e
		LEFT JOIN entitlement_ledger l ON l.entitlement_id = e.id
		WHERE e.id = $1
		GROUP BY e.id, e.total, e.remaining
	`, entitlementID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: balance: %v", ErrInternal, err)
	}
	return &b, nil
}

func (r *Repository) holdStatus(ctx context.Context, tx *sqlx.Tx, entitlementID uuid.UUID, reference string) (EntryStatus, error) {
	var status EntryStatus
	err := tx.GetContext(ctx, &status, `
		SELECT status FROM entitlement_ledger
		WHERE entitlement_id = $1 AND kind = 'hold' AND reference = $2
	`, entitlementID, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrHoldNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: hold status: %v", ErrInternal, err)
	}
	return status, nil
}

func (r *Repository) insertEntry(ctx context.Context, tx *sqlx.Tx, entitlementID, studentID uuid.UUID, kind EntryKind, status EntryStatus, delta int, reference string, reason *string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO entitlement_ledger (entitlement_id, student_id, kind, status, delta, reference, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entitlementID, studentID, string(kind), string(status), delta, reference, reason)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: duplicate %s entry for %s", ErrInternal, kind, reference)
		}
		return fmt.Errorf("%w: insert %s entry: %v", ErrInternal, kind, err)
	}
	return nil
}
