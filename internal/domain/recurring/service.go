package recurring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/tutorhub/tutorhub-api/internal/domain/audit"
	"github.com/tutorhub/tutorhub-api/internal/domain/booking"
	"github.com/tutorhub/tutorhub-api/internal/domain/entitlement"
	"github.com/tutorhub/tutorhub-api/internal/domain/notify"
	"github.com/tutorhub/tutorhub-api/internal/pkg/database"
	"github.com/tutorhub/tutorhub-api/internal/pkg/identity"
)

// MaxWeeks bounds how far a single run may generate
const MaxWeeks = 52

// Booker is the slice of the booking state machine the generator drives
type Booker interface {
	BookOccurrence(ctx context.Context, actor identity.Actor, in booking.SlotInput) (*booking.Class, error)
	CancelClassTx(ctx context.Context, tx *sqlx.Tx, actor identity.Actor, classID uuid.UUID, reason string) (*booking.Class, error)
}

type Notifier interface {
	Publish(ctx context.Context, ev notify.Event)
}

type Config struct {
	FailureThreshold int
	MaxWeeks         int
	WeeksAhead       int
}

type Service struct {
	db       *sqlx.DB
	repo     *Repository
	booker   Booker
	audit    *audit.Repository
	notifier Notifier
	cfg      Config
	now      func() time.Time
}

func NewService(db *sqlx.DB, repo *Repository, booker Booker, auditRepo *audit.Repository, notifier Notifier, cfg Config) *Service {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 2
	}
	if cfg.MaxWeeks <= 0 || cfg.MaxWeeks > MaxWeeks {
		cfg.MaxWeeks = MaxWeeks
	}
	if cfg.WeeksAhead <= 0 {
		cfg.WeeksAhead = 4
	}
	return &Service{
		db:       db,
		repo:     repo,
		booker:   booker,
		audit:    auditRepo,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// ValidateInput checks the weekly rule before anything is stored
func ValidateInput(in CreateInput) error {
	if !entitlement.Category(in.Category).Bookable() {
		return ErrInvalidCategory
	}
	if in.StudentID == uuid.Nil || in.TeacherID == uuid.Nil {
		return fmt.Errorf("%w: student and teacher are required", ErrInvalidRule)
	}
	if in.DayOfWeek < 0 || in.DayOfWeek > 6 {
		return fmt.Errorf("%w: day_of_week must be 0-6", ErrInvalidRule)
	}
	if in.StartMinute < 0 || in.StartMinute >= 24*60 {
		return fmt.Errorf("%w: start_minute must be 0-1439", ErrInvalidRule)
	}
	if in.DurationMinutes <= 0 || in.DurationMinutes > 24*60 {
		return fmt.Errorf("%w: duration_minutes must be 1-1440", ErrInvalidRule)
	}
	if in.StartDate.IsZero() {
		return fmt.Errorf("%w: start_date is required", ErrInvalidRule)
	}
	if in.EndDate != nil && dateOf(*in.EndDate).Before(dateOf(in.StartDate)) {
		return fmt.Errorf("%w: end_date before start_date", ErrInvalidRule)
	}
	return nil
}

// CreateSeries stores the rule and books every week up to the end date or
// the generation limit. Weeks that cannot be booked are skipped.
func (s *Service) CreateSeries(ctx context.Context, actor identity.Actor, in CreateInput) (*Generation, error) {
	if !actor.Privileged() && !(actor.IsStudent() && actor.ID == in.StudentID) {
		return nil, ErrForbidden
	}
	if err := ValidateInput(in); err != nil {
		return nil, err
	}

	row := &Series{
		StudentID:       in.StudentID,
		TeacherID:       in.TeacherID,
		Category:        in.Category,
		DayOfWeek:       in.DayOfWeek,
		StartMinute:     in.StartMinute,
		DurationMinutes: in.DurationMinutes,
		StartDate:       dateOf(in.StartDate),
		CreatedBy:       actor.ID,
	}
	if in.EndDate != nil {
		end := dateOf(*in.EndDate)
		row.EndDate = &end
	}

	tx, err := database.BeginTx(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	series, err := s.repo.CreateTx(ctx, tx, row)
	if err != nil {
		return nil, err
	}
	if err := s.audit.RecordTx(ctx, tx, actor, audit.ActionSeriesCreated, audit.TargetSeries, series.ID, series); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}

	gen := s.book(ctx, actor, series, series.Occurrences(s.now().UTC(), s.cfg.MaxWeeks), nil)

	log.Info().
		Str("series_id", series.ID.String()).
		Int("booked", len(gen.OccurrenceIDs)).
		Int("skipped", len(gen.Skipped)).
		Msg("series created")
	s.publish(ctx, series)
	return gen, nil
}

// GenerateFuture books the weeks between the latest generated occurrence and
// weeksAhead weeks from now. Dates that already have a class are left alone,
// so repeated runs only fill the horizon.
func (s *Service) GenerateFuture(ctx context.Context, actor identity.Actor, seriesID uuid.UUID, weeksAhead int) (*Generation, error) {
	series, err := s.repo.GetByID(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, series); err != nil {
		return nil, err
	}
	switch series.Status {
	case StatusCancelled:
		return nil, ErrCancelled
	case StatusPaused:
		return nil, ErrNotActive
	}

	if weeksAhead <= 0 {
		weeksAhead = s.cfg.WeeksAhead
	}
	if weeksAhead > s.cfg.MaxWeeks {
		weeksAhead = s.cfg.MaxWeeks
	}

	now := s.now().UTC()
	after := now
	latest, err := s.repo.LatestOccurrence(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.After(after) {
		after = *latest
	}

	horizon := now.AddDate(0, 0, 7*weeksAhead)
	var starts []time.Time
	for _, t := range series.Occurrences(after, weeksAhead+1) {
		if t.After(horizon) {
			break
		}
		starts = append(starts, t)
	}

	existing, err := s.repo.OccurrenceStarts(ctx, seriesID, now)
	if err != nil {
		return nil, err
	}

	gen := s.book(ctx, actor, series, starts, existing)
	if len(gen.OccurrenceIDs) > 0 {
		s.publish(ctx, series)
	}
	return gen, nil
}

// GenerateAllActive extends every active series. Used by the worker.
func (s *Service) GenerateAllActive(ctx context.Context, weeksAhead int) (int, error) {
	list, err := s.repo.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	booked := 0
	for i := range list {
		if ctx.Err() != nil {
			return booked, ctx.Err()
		}
		gen, err := s.GenerateFuture(ctx, identity.System(), list[i].ID, weeksAhead)
		if err != nil {
			log.Error().Err(err).Str("series_id", list[i].ID.String()).Msg("series generation failed")
			continue
		}
		booked += len(gen.OccurrenceIDs)
	}

	log.Info().Int("series", len(list)).Int("booked", booked).Msg("active series extended")
	return booked, nil
}

// book runs one request+accept transaction per start time
func (s *Service) book(ctx context.Context, actor identity.Actor, series *Series, starts []time.Time, existing map[int64]bool) *Generation {
	gen := &Generation{Series: series, OccurrenceIDs: []uuid.UUID{}}

	for _, start := range starts {
		if existing[start.Unix()] {
			continue
		}
		if ctx.Err() != nil {
			gen.Skipped = append(gen.Skipped, Skipped{StartsAt: start, Reason: "CANCELLED"})
			continue
		}

		class, err := s.booker.BookOccurrence(ctx, actor, booking.SlotInput{
			StudentID: series.StudentID,
			TeacherID: series.TeacherID,
			Start:     start,
			End:       start.Add(series.Duration()),
			Category:  series.Category,
			SeriesID:  uuid.NullUUID{UUID: series.ID, Valid: true},
		})
		if err != nil {
			log.Warn().
				Err(err).
				Str("series_id", series.ID.String()).
				Time("starts_at", start).
				Msg("series week skipped")
			gen.Skipped = append(gen.Skipped, Skipped{StartsAt: start, Reason: skipReason(err)})
			continue
		}
		gen.OccurrenceIDs = append(gen.OccurrenceIDs, class.ID)
	}
	return gen
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, entitlement.ErrNoEntitlementAvailable):
		return "NO_ENTITLEMENT_AVAILABLE"
	case errors.Is(err, booking.ErrTeacherUnavailable):
		return "TEACHER_UNAVAILABLE"
	case errors.Is(err, booking.ErrSlotConflict):
		return "SLOT_CONFLICT"
	case errors.Is(err, booking.ErrInvalidSlot):
		return "INVALID_SLOT"
	default:
		return "INTERNAL_ERROR"
	}
}

// HandlePaymentFailure records a failed renewal. Reaching the threshold
// cancels the series and every occurrence that has not started yet, with
// refunds and voided earnings as for an admin cancellation.
func (s *Service) HandlePaymentFailure(ctx context.Context, actor identity.Actor, seriesID uuid.UUID) (*FailureResult, error) {
	if !actor.Privileged() {
		return nil, ErrForbidden
	}

	tx, err := database.BeginTx(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	series, err := s.repo.LockTx(ctx, tx, seriesID)
	if err != nil {
		return nil, err
	}
	if series.Status == StatusCancelled {
		return &FailureResult{Series: series, Cancelled: true, FailureCount: series.PaymentFailureCount}, nil
	}

	failures := series.PaymentFailureCount + 1
	result := &FailureResult{FailureCount: failures}

	if failures < s.cfg.FailureThreshold {
		series, err = s.repo.UpdateTx(ctx, tx, seriesID, series.Status, failures)
		if err != nil {
			return nil, err
		}
		if err := s.audit.RecordTx(ctx, tx, actor, audit.ActionPaymentFailed, audit.TargetSeries, seriesID, map[string]interface{}{
			"failure_count": failures,
		}); err != nil {
			return nil, err
		}
	} else {
		ids, err := s.repo.UpcomingOccurrencesTx(ctx, tx, seriesID, s.now().UTC())
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			_, err := s.booker.CancelClassTx(ctx, tx, actor, id, "series cancelled after payment failures")
			if errors.Is(err, booking.ErrInvalidTransition) {
				continue
			}
			if err != nil {
				return nil, err
			}
			result.CancelledIDs = append(result.CancelledIDs, id)
		}

		series, err = s.repo.UpdateTx(ctx, tx, seriesID, StatusCancelled, failures)
		if err != nil {
			return nil, err
		}
		if err := s.audit.RecordTx(ctx, tx, actor, audit.ActionSeriesCancelled, audit.TargetSeries, seriesID, map[string]interface{}{
			"failure_count":     failures,
			"cancelled_classes": result.CancelledIDs,
		}); err != nil {
			return nil, err
		}
		result.Cancelled = true
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}
	result.Series = series

	log.Info().
		Str("series_id", seriesID.String()).
		Int("failure_count", failures).
		Bool("cancelled", result.Cancelled).
		Int("classes_cancelled", len(result.CancelledIDs)).
		Msg("series payment failure recorded")
	if result.Cancelled {
		s.publish(ctx, series)
	}
	return result, nil
}

// ResetPaymentFailure zeroes the failure counter after a successful renewal
func (s *Service) ResetPaymentFailure(ctx context.Context, actor identity.Actor, seriesID uuid.UUID) (*Series, error) {
	if !actor.Privileged() {
		return nil, ErrForbidden
	}
	return s.transition(ctx, actor, seriesID, audit.ActionPaymentReset, func(series *Series) (Status, int, error) {
		if series.Status == StatusCancelled {
			return "", 0, ErrCancelled
		}
		return series.Status, 0, nil
	})
}

// Pause stops future generation; existing occurrences stay booked
func (s *Service) Pause(ctx context.Context, actor identity.Actor, seriesID uuid.UUID) (*Series, error) {
	return s.transition(ctx, actor, seriesID, audit.ActionSeriesPaused, func(series *Series) (Status, int, error) {
		if err := authorize(actor, series); err != nil {
			return "", 0, err
		}
		if series.Status != StatusActive {
			return "", 0, ErrNotActive
		}
		return StatusPaused, series.PaymentFailureCount, nil
	})
}

func (s *Service) Resume(ctx context.Context, actor identity.Actor, seriesID uuid.UUID) (*Series, error) {
	return s.transition(ctx, actor, seriesID, audit.ActionSeriesResumed, func(series *Series) (Status, int, error) {
		if err := authorize(actor, series); err != nil {
			return "", 0, err
		}
		if series.Status != StatusPaused {
			return "", 0, ErrNotPaused
		}
		return StatusActive, series.PaymentFailureCount, nil
	})
}

func (s *Service) transition(ctx context.Context, actor identity.Actor, seriesID uuid.UUID, action string, next func(*Series) (Status, int, error)) (*Series, error) {
	tx, err := database.BeginTx(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	before, err := s.repo.LockTx(ctx, tx, seriesID)
	if err != nil {
		return nil, err
	}
	status, failures, err := next(before)
	if err != nil {
		return nil, err
	}

	after, err := s.repo.UpdateTx(ctx, tx, seriesID, status, failures)
	if err != nil {
		return nil, err
	}
	if err := s.audit.RecordTx(ctx, tx, actor, action, audit.TargetSeries, seriesID, map[string]interface{}{
		"status":        map[string]Status{"from": before.Status, "to": after.Status},
		"failure_count": map[string]int{"from": before.PaymentFailureCount, "to": after.PaymentFailureCount},
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}

	if before.Status != after.Status {
		s.publish(ctx, after)
	}
	return after, nil
}

func (s *Service) Get(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Series, error) {
	series, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, series); err != nil {
		return nil, err
	}
	return series, nil
}

// List returns the user's series. Only admins may list for someone else.
func (s *Service) List(ctx context.Context, actor identity.Actor, userID uuid.UUID) ([]Series, error) {
	if userID != actor.ID && !actor.Privileged() {
		return nil, ErrForbidden
	}
	return s.repo.ListForUser(ctx, userID)
}

func authorize(actor identity.Actor, series *Series) error {
	switch {
	case actor.Privileged():
		return nil
	case actor.IsStudent() && actor.ID == series.StudentID:
		return nil
	case actor.IsTeacher() && actor.ID == series.TeacherID:
		return nil
	}
	return ErrForbidden
}

func (s *Service) publish(ctx context.Context, series *Series) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, notify.Event{
		Type:       notify.EventSeriesUpdated,
		Recipients: []uuid.UUID{series.StudentID, series.TeacherID},
		SeriesID:   series.ID,
		Status:     string(series.Status),
		OccurredAt: s.now().UTC(),
	})
}
