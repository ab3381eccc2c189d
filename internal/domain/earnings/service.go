package earnings

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/tutorhub/tutorhub-api/internal/domain/audit"
	"github.com/tutorhub/tutorhub-api/internal/pkg/database"
	"github.com/tutorhub/tutorhub-api/internal/pkg/identity"
	"github.com/tutorhub/tutorhub-api/internal/pkg/storage"
)

// PayrollHeader is the column order of payroll CSV exports
var PayrollHeader = []string{
	"earnings_id", "class_id", "teacher_id", "student_id", "lesson_start_utc",
	"duration_minutes", "hourly_rate", "amount", "platform_fee", "currency", "status", "paid_at",
}

type Service struct {
	db       *sqlx.DB
	repo     *Repository
	audit    *audit.Repository
	defaults Defaults
	store    storage.Storage
	now      func() time.Time
}

// NewService creates the earnings service. store may be nil, in which case
// ArchivePayroll returns ErrStorageDisabled.
func NewService(db *sqlx.DB, repo *Repository, auditRepo *audit.Repository, defaults Defaults, store storage.Storage) *Service {
	return &Service{db: db, repo: repo, audit: auditRepo, defaults: defaults, store: store, now: time.Now}
}

// RecordLessonTx computes and stores the earnings for a confirmed lesson.
// Called by the booking state machine in the same transaction that confirms
// the class; a second call for the same class returns the first record.
func (s *Service) RecordLessonTx(ctx context.Context, tx *sqlx.Tx, actor identity.Actor, lesson Lesson) (*Record, error) {
	if lesson.Duration() <= 0 {
		return nil, fmt.Errorf("%w: lesson %s has no duration", ErrInternal, lesson.ClassID)
	}

	rate, err := s.resolveRateTx(ctx, tx, actor, lesson.TeacherID, lesson.Category)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ClassID:         lesson.ClassID,
		TeacherID:       lesson.TeacherID,
		StudentID:       lesson.StudentID,
		Category:        lesson.Category,
		HourlyRate:      rate.HourlyRate,
		DurationMinutes: int(lesson.Duration() / time.Minute),
		AmountMinor:     Calculate(rate.HourlyRate, lesson.Duration(), rate.Currency),
		Currency:        rate.Currency,
	}

	out, created, err := s.repo.CreateRecordTx(ctx, tx, rec)
	if err != nil {
		return nil, err
	}
	if !created {
		return out, nil
	}

	if err := s.audit.RecordTx(ctx, tx, actor, audit.ActionEarningsCreated, audit.TargetEarnings, out.ID, map[string]interface{}{
		"class_id":     out.ClassID,
		"teacher_id":   out.TeacherID,
		"hourly_rate":  out.HourlyRate,
		"amount_minor": out.AmountMinor,
		"currency":     out.Currency,
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// resolveRateTx picks the rate a lesson is paid at. Group lessons fall back
// to the teacher's one-to-one rate; with neither, the system default for the
// category is persisted.
func (s *Service) resolveRateTx(ctx context.Context, tx *sqlx.Tx, actor identity.Actor, teacherID uuid.UUID, category string) (*Rate, error) {
	rateCategory := RateCategory(category)

	if rateCategory == "group" {
		rate, err := s.repo.getRateTx(ctx, tx, teacherID, "group")
		if err == nil {
			return rate, nil
		}
		rate, err = s.repo.getRateTx(ctx, tx, teacherID, "one_to_one")
		if err == nil {
			return rate, nil
		}
	}

	rate, created, err := s.repo.ResolveRateTx(ctx, tx, teacherID, rateCategory, s.defaults.For(rateCategory), s.defaults.Currency)
	if err != nil {
		return nil, err
	}
	if created {
		log.Info().
			Str("teacher_id", teacherID.String()).
			Str("category", rateCategory).
			Str("hourly_rate", rate.HourlyRate.StringFixed(2)).
			Msg("default teacher rate applied")
		if err := s.audit.RecordTx(ctx, tx, actor, audit.ActionRateDefaulted, audit.TargetRate, teacherID, rate); err != nil {
			return nil, err
		}
	}
	return rate, nil
}

// VoidForClassTx voids the class's pending earnings. Classes without a
// record return nil; paid records are left as they are.
func (s *Service) VoidForClassTx(ctx context.Context, tx *sqlx.Tx, actor identity.Actor, classID uuid.UUID, reason string) (*Record, error) {
	before, err := s.repo.lockByClassTx(ctx, tx, classID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	switch before.Status {
	case StatusVoided:
		return before, nil
	case StatusPaid:
		log.Warn().
			Str("class_id", classID.String()).
			Str("earnings_id", before.ID.String()).
			Str("reason", reason).
			Msg("earnings already paid out, not voiding")
		return before, nil
	}

	rec, err := s.repo.VoidTx(ctx, tx, classID, reason, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.audit.RecordTx(ctx, tx, actor, audit.ActionEarningsVoided, audit.TargetEarnings, rec.ID, map[string]interface{}{
		"class_id":     classID,
		"amount_minor": rec.AmountMinor,
		"reason":       reason,
	}); err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkPaid records the payout of a pending record
func (s *Service) MarkPaid(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Record, error) {
	tx, err := database.BeginTx(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	rec, err := s.repo.MarkPaidTx(ctx, tx, id, actor.ID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.audit.RecordTx(ctx, tx, actor, audit.ActionEarningsPaid, audit.TargetEarnings, rec.ID, map[string]interface{}{
		"amount_minor": rec.AmountMinor,
		"currency":     rec.Currency,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}

	log.Info().Str("earnings_id", rec.ID.String()).Str("paid_by", actor.ID.String()).Msg("earnings marked paid")
	return rec, nil
}

// SetRate sets a teacher's hourly rate for a category. Existing records keep
// the rate they were computed with.
func (s *Service) SetRate(ctx context.Context, actor identity.Actor, teacherID uuid.UUID, category string, hourly decimal.Decimal, currency string) (*Rate, error) {
	if category != "one_to_one" && category != "group" {
		return nil, ErrInvalidCategory
	}
	if hourly.IsNegative() || hourly.Exponent() < -2 {
		return nil, ErrInvalidRate
	}
	if currency == "" {
		currency = s.defaults.Currency
	}

	tx, err := database.BeginTx(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	rate, err := s.repo.UpsertRateTx(ctx, tx, &Rate{
		TeacherID:  teacherID,
		Category:   category,
		HourlyRate: hourly,
		Currency:   strings.ToLower(currency),
	})
	if err != nil {
		return nil, err
	}
	if err := s.audit.RecordTx(ctx, tx, actor, audit.ActionRateSet, audit.TargetRate, teacherID, rate); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}
	return rate, nil
}

func (s *Service) ListRates(ctx context.Context, teacherID *uuid.UUID) ([]Rate, error) {
	return s.repo.ListRates(ctx, teacherID)
}

// Summary is a page of records plus per-status totals for the same filter
type Summary struct {
	Records []Record         `json:"records"`
	Totals  map[Status]int64 `json:"totals"`
	Total   int              `json:"-"`
}

// List returns earnings visible to the actor. Teachers only ever see their own.
func (s *Service) List(ctx context.Context, actor identity.Actor, f Filter) (*Summary, error) {
	switch {
	case actor.IsAdmin():
	case actor.IsTeacher():
		id := actor.ID
		f.TeacherID = &id
	default:
		return nil, ErrForbidden
	}

	records, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.Totals(ctx, f)
	if err != nil {
		return nil, err
	}
	return &Summary{Records: records, Totals: totals, Total: total}, nil
}

// ExportPayroll writes the filtered records as CSV
func (s *Service) ExportPayroll(ctx context.Context, f Filter, w io.Writer) (int, error) {
	lines, err := s.repo.PayrollLines(ctx, f)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(PayrollHeader); err != nil {
		return 0, err
	}
	for _, l := range lines {
		if err := cw.Write(payrollRow(l)); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	return len(lines), cw.Error()
}

func payrollRow(l PayrollLine) []string {
	paidAt := ""
	if l.PaidAt != nil {
		paidAt = l.PaidAt.UTC().Format(time.RFC3339)
	}
	return []string{
		l.ID.String(),
		l.ClassID.String(),
		l.TeacherID.String(),
		l.StudentID.String(),
		l.LessonStart.UTC().Format(time.RFC3339),
		strconv.Itoa(l.DurationMinutes),
		l.HourlyRate.StringFixed(2),
		FormatMinor(l.AmountMinor, l.Currency),
		FormatMinor(l.PlatformFeeMinor, l.Currency),
		l.Currency,
		string(l.Status),
		paidAt,
	}
}

// Archive describes an uploaded payroll export
type Archive struct {
	Key   string `json:"key"`
	URL   string `json:"url"`
	Lines int    `json:"lines"`
}

// ArchivePayroll uploads the export for the filter to object storage
func (s *Service) ArchivePayroll(ctx context.Context, actor identity.Actor, f Filter) (*Archive, error) {
	if s.store == nil {
		return nil, ErrStorageDisabled
	}

	var buf bytes.Buffer
	n, err := s.ExportPayroll(ctx, f, &buf)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	key := fmt.Sprintf("payroll/%s/%s-%s.csv", now.Format("2006/01"), now.Format("20060102T150405Z"), uuid.NewString()[:8])
	if err := s.store.Put(ctx, key, &buf, "text/csv"); err != nil {
		return nil, fmt.Errorf("%w: upload payroll: %v", ErrInternal, err)
	}

	archive := &Archive{Key: key, URL: s.store.GetURL(key), Lines: n}

	tx, err := database.BeginTx(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	if err := s.audit.RecordTx(ctx, tx, actor, audit.ActionPayrollArchived, audit.TargetPayroll, uuid.Nil, archive); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}

	log.Info().Str("key", key).Int("lines", n).Msg("payroll archived")
	return archive, nil
}
