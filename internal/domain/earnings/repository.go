package earnings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const queryTimeout = 3 * time.Second

const recordColumns = `id, class_id, teacher_id, student_id, category, hourly_rate, duration_minutes,
	amount_minor, platform_fee_minor, currency, status, paid_at, paid_by, voided_at, void_reason, created_at`

const rateColumns = `teacher_id, category, hourly_rate, currency, is_default, updated_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// ResolveRateTx returns the teacher's rate for the category. When none is
// stored the supplied default is persisted first, so later lookups and
// admin listings see the same figure. created reports that insertion.
func (r *Repository) ResolveRateTx(ctx context.Context, tx *sqlx.Tx, teacherID uuid.UUID, category string, def decimal.Decimal, currency string) (rate *Rate, created bool, err error) {
	rate, err = r.getRateTx(ctx, tx, teacherID, category)
	if err == nil {
		return rate, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("%w: select rate: %v", ErrInternal, err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO teacher_rates (teacher_id, category, hourly_rate, currency, is_default)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (teacher_id, category) DO NOTHING
	`, teacherID, category, def, currency)
	if err != nil {
		return nil, false, fmt.Errorf("%w: insert default rate: %v", ErrInternal, err)
	}
	n, _ := res.RowsAffected()

	rate, err = r.getRateTx(ctx, tx, teacherID, category)
	if err != nil {
		return nil, false, fmt.Errorf("%w: reselect rate: %v", ErrInternal, err)
	}
	return rate, n == 1, nil
}

func (r *Repository) getRateTx(ctx context.Context, tx *sqlx.Tx, teacherID uuid.UUID, category string) (*Rate, error) {
	var rate Rate
	err := tx.GetContext(ctx, &rate, `
		SELECT `+rateColumns+`
		FROM teacher_rates
		WHERE teacher_id = $1 AND category = $2
	`, teacherID, category)
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

// UpsertRateTx sets an explicit rate, replacing any default
func (r *Repository) UpsertRateTx(ctx context.Context, tx *sqlx.Tx, rate *Rate) (*Rate, error) {
	var out Rate
	err := tx.GetContext(ctx, &out, `
		INSERT INTO teacher_rates (teacher_id, category, hourly_rate, currency, is_default)
		VALUES ($1, $2, $3, $4, FALSE)
		ON CONFLICT (teacher_id, category) DO UPDATE
		SET hourly_rate = EXCLUDED.hourly_rate,
		    currency = EXCLUDED.currency,
		    is_default = FALSE,
		    updated_at = now()
		RETURNING `+rateColumns,
		rate.TeacherID, rate.Category, rate.HourlyRate, rate.Currency)
	if err != nil {
		return nil, fmt.Errorf("%w: upsert rate: %v", ErrInternal, err)
	}
	return &out, nil
}

func (r *Repository) ListRates(ctx context.Context, teacherID *uuid.UUID) ([]Rate, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rates := []Rate{}
	query := `SELECT ` + rateColumns + ` FROM teacher_rates`
	args := []interface{}{}
	if teacherID != nil {
		query += ` WHERE teacher_id = $1`
		args = append(args, *teacherID)
	}
	query += ` ORDER BY teacher_id, category`

	if err := r.db.SelectContext(ctx, &rates, query, args...); err != nil {
		return nil, fmt.Errorf("%w: list rates: %v", ErrInternal, err)
	}
	return rates, nil
}

// CreateRecordTx inserts the record for a class. A class has at most one
// record; inserting again returns the existing one with created=false.
func (r *Repository) CreateRecordTx(ctx context.Context, tx *sqlx.Tx, rec *Record) (out *Record, created bool, err error) {
	var inserted Record
	err = tx.GetContext(ctx, &inserted, `
		INSERT INTO earnings_records (class_id, teacher_id, student_id, category, hourly_rate,
			duration_minutes, amount_minor, platform_fee_minor, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (class_id) DO NOTHING
		RETURNING `+recordColumns,
		rec.ClassID, rec.TeacherID, rec.StudentID, rec.Category, rec.HourlyRate,
		rec.DurationMinutes, rec.AmountMinor, rec.PlatformFeeMinor, rec.Currency)
	if err == nil {
		return &inserted, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("%w: insert earnings: %v", ErrInternal, err)
	}

	existing, err := r.lockByClassTx(ctx, tx, rec.ClassID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *Repository) lockByClassTx(ctx context.Context, tx *sqlx.Tx, classID uuid.UUID) (*Record, error) {
	var rec Record
	err := tx.GetContext(ctx, &rec, `
		SELECT `+recordColumns+`
		FROM earnings_records
		WHERE class_id = $1
		FOR UPDATE
	`, classID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock earnings: %v", ErrInternal, err)
	}
	return &rec, nil
}

func (r *Repository) lockByIDTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Record, error) {
	var rec Record
	err := tx.GetContext(ctx, &rec, `
		SELECT `+recordColumns+`
		FROM earnings_records
		WHERE id = $1
		FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock earnings: %v", ErrInternal, err)
	}
	return &rec, nil
}

// VoidTx voids the pending record of a class. Paid and already voided
// records are returned untouched.
func (r *Repository) VoidTx(ctx context.Context, tx *sqlx.Tx, classID uuid.UUID, reason string, at time.Time) (*Record, error) {
	rec, err := r.lockByClassTx(ctx, tx, classID)
	if err != nil {
		return nil, err
	}
	if rec.Status != StatusPending {
		return rec, nil
	}

	var out Record
	err = tx.GetContext(ctx, &out, `
		UPDATE earnings_records
		SET status = 'voided', voided_at = $2, void_reason = $3
		WHERE id = $1
		RETURNING `+recordColumns,
		rec.ID, at, reason)
	if err != nil {
		return nil, fmt.Errorf("%w: void earnings: %v", ErrInternal, err)
	}
	return &out, nil
}

// MarkPaidTx moves a pending record to paid
func (r *Repository) MarkPaidTx(ctx context.Context, tx *sqlx.Tx, id, paidBy uuid.UUID, at time.Time) (*Record, error) {
	rec, err := r.lockByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	switch rec.Status {
	case StatusPaid:
		return nil, ErrAlreadyPaid
	case StatusVoided:
		return nil, ErrVoided
	}

	var out Record
	err = tx.GetContext(ctx, &out, `
		UPDATE earnings_records
		SET status = 'paid', paid_at = $2, paid_by = $3
		WHERE id = $1
		RETURNING `+recordColumns,
		id, at, paidBy)
	if err != nil {
		return nil, fmt.Errorf("%w: mark paid: %v", ErrInternal, err)
	}
	return &out, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rec Record
	err := r.db.GetContext(ctx, &rec, `SELECT `+recordColumns+` FROM earnings_records WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get earnings: %v", ErrInternal, err)
	}
	return &rec, nil
}

func (r *Repository) GetByClassID(ctx context.Context, classID uuid.UUID) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rec Record
	err := r.db.GetContext(ctx, &rec, `SELECT `+recordColumns+` FROM earnings_records WHERE class_id = $1`, classID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get earnings: %v", ErrInternal, err)
	}
	return &rec, nil
}

// whereClause builds the shared filter. Dates apply to the lesson start,
// so every query using it must join classes as c.
func whereClause(f Filter) (string, []interface{}) {
	where := []string{"1=1"}
	args := []interface{}{}

	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.TeacherID != nil {
		add("e.teacher_id = $%d", *f.TeacherID)
	}
	if f.Status != nil {
		add("e.status = $%d", string(*f.Status))
	}
	if f.From != nil {
		add("c.starts_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("c.starts_at < $%d", *f.To)
	}
	return strings.Join(where, " AND "), args
}

func prefixed(cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = "e." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func (r *Repository) List(ctx context.Context, f Filter) ([]Record, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cond, args := whereClause(f)

	var total int
	if err := r.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM earnings_records e JOIN classes c ON c.id = e.class_id
		WHERE `+cond, args...); err != nil {
		return nil, 0, fmt.Errorf("%w: count earnings: %v", ErrInternal, err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM earnings_records e
		JOIN classes c ON c.id = e.class_id
		WHERE %s
		ORDER BY c.starts_at DESC, e.id
		LIMIT $%d OFFSET $%d
	`, prefixed(recordColumns), cond, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	records := []Record{}
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("%w: list earnings: %v", ErrInternal, err)
	}
	return records, total, nil
}

// Totals sums amounts per status over the filter, ignoring f.Status
func (r *Repository) Totals(ctx context.Context, f Filter) (map[Status]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	f.Status = nil
	cond, args := whereClause(f)

	var rows []struct {
		Status Status `db:"status"`
		Amount int64  `db:"amount"`
	}
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT e.status, COALESCE(SUM(e.amount_minor), 0) AS amount
		FROM earnings_records e
		JOIN classes c ON c.id = e.class_id
		WHERE `+cond+`
		GROUP BY e.status
	`, args...); err != nil {
		return nil, fmt.Errorf("%w: sum earnings: %v", ErrInternal, err)
	}

	totals := map[Status]int64{StatusPending: 0, StatusPaid: 0, StatusVoided: 0}
	for _, row := range rows {
		totals[row.Status] = row.Amount
	}
	return totals, nil
}

// PayrollLines returns every record in the filter ordered for export
func (r *Repository) PayrollLines(ctx context.Context, f Filter) ([]PayrollLine, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cond, args := whereClause(f)
	lines := []PayrollLine{}
	if err := r.db.SelectContext(ctx, &lines, `
		SELECT `+prefixed(recordColumns)+`, c.starts_at AS lesson_start
		FROM earnings_records e
		JOIN classes c ON c.id = e.class_id
		WHERE `+cond+`
		ORDER BY e.teacher_id, c.starts_at, e.id
	`, args...); err != nil {
		return nil, fmt.Errorf("%w: payroll lines: %v", ErrInternal, err)
	}
	return lines, nil
}
