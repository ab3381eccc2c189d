package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/tutorhub/tutorhub-api/internal/domain/audit"
	"github.com/tutorhub/tutorhub-api/internal/domain/availability"
	"github.com/tutorhub/tutorhub-api/internal/domain/earnings"
	"github.com/tutorhub/tutorhub-api/internal/domain/entitlement"
	"github.com/tutorhub/tutorhub-api/internal/domain/notify"
	"github.com/tutorhub/tutorhub-api/internal/pkg/database"
	"github.com/tutorhub/tutorhub-api/internal/pkg/identity"
)

// Notifier receives booking events after their transaction commits
type Notifier interface {
	Publish(ctx context.Context, ev notify.Event)
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, notify.Event) {}

// Config holds the time-dependent policy knobs
type Config struct {
	RequestTTL       time.Duration
	LateCancelWindow time.Duration
}

type Service struct {
	db       *sqlx.DB
	repo     *Repository
	ledger   *entitlement.Repository
	windows  *availability.Repository
	earnings *earnings.Service
	audit    *audit.Repository
	notifier Notifier
	cfg      Config
	now      func() time.Time
}

func NewService(
	db *sqlx.DB,
	repo *Repository,
	ledger *entitlement.Repository,
	windows *availability.Repository,
	earningsSvc *earnings.Service,
	auditRepo *audit.Repository,
	notifier Notifier,
	cfg Config,
) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if cfg.RequestTTL <= 0 {
		cfg.RequestTTL = 15 * time.Minute
	}
	if cfg.LateCancelWindow <= 0 {
		cfg.LateCancelWindow = 24 * time.Hour
	}
	return &Service{
		db:       db,
		repo:     repo,
		ledger:   ledger,
		windows:  windows,
		earnings: earningsSvc,
		audit:    auditRepo,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// RequestSlot holds one unit of the student's entitlement and opens a slot
// request for the teacher to accept. Nothing is written when any check fails.
func (s *Service) RequestSlot(ctx context.Context, actor identity.Actor, in SlotInput) (*RequestResult, error) {
	if !actor.Privileged() && actor.ID != in.StudentID {
		return nil, ErrForbidden
	}

	tx, err := database.BeginTx(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	class, req, err := s.requestTx(ctx, tx, actor, in, false)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}

	log.Info().
		Str("slot_request_id", req.ID.String()).
		Str("class_id", class.ID.String()).
		Str("teacher_id", class.TeacherID.String()).
		Msg("slot requested")
	s.publish(ctx, notify.EventSlotRequested, class)

	return &RequestResult{
		SlotRequestID:     req.ID,
		EntitlementHoldID: req.EntitlementID,
		ClassID:           class.ID,
		ExpiresAt:         req.ExpiresAt,
	}, nil
}

// requestTx validates the slot, takes the hold and inserts the requested
// class with its slot request. force skips the availability and
// entitlement checks; the overlap check always applies.
func (s *Service) requestTx(ctx context.Context, tx *sqlx.Tx, actor identity.Actor, in SlotInput, force bool) (*Class, *SlotRequest, error) {
	now := s.now().UTC()
	in.Start, in.End = in.Start.UTC(), in.End.UTC()

	if !in.End.After(in.Start) || (!force && !in.Start.After(now)) {
		return nil, nil, ErrInvalidSlot
	}
	if !entitlement.Category(in.Category).Bookable() {
		return nil, nil, ErrInvalidCategory
	}

	if !force {
		if _, err := s.windows.LockCoveringTx(ctx, tx, in.TeacherID, in.Start, in.End, availability.SkipLocked); err != nil {
			if errors.Is(err, availability.ErrUnavailable) {
				return nil, nil, ErrTeacherUnavailable
			}
			return nil, nil, err
		}
	}

	overlaps, err := s.repo.OverlapTx(ctx, tx, in, uuid.Nil)
	if err != nil {
		return nil, nil, err
	}
	if overlaps {
		return nil, nil, ErrSlotConflict
	}

	requestID := uuid.New()
	ref := holdReference(requestID)

	var entitlementID uuid.NullUUID
	if !force {
		id, err := s.ledger.HoldTx(ctx, tx, in.StudentID, entitlement.Category(in.Category), ref, now)
		if err != nil {
			return nil, nil, err
		}
		entitlementID = uuid.NullUUID{UUID: id, Valid: true}
	}

	class, err := s.repo.InsertClassTx(ctx, tx, &Class{
		ID:            uuid.New(),
		StudentID:     in.StudentID,
		TeacherID:     in.TeacherID,
		SlotRequestID: uuid.NullUUID{UUID: requestID, Valid: true},
		EntitlementID: entitlementID,
		HoldReference: &ref,
		SeriesID:      in.SeriesID,
		Category:      in.Category,
		StartsAt:      in.Start,
		EndsAt:        in.End,
		Status:        ClassRequested,
		ForceBooked:   force,
	})
	if err != nil {
		return nil, nil, err
	}

	req, err := s.repo.InsertRequestTx(ctx, tx, &SlotRequest{
		ID:            requestID,
		StudentID:     in.StudentID,
		TeacherID:     in.TeacherID,
		ClassID:       class.ID,
		EntitlementID: entitlementID,
		HoldReference: ref,
		Category:      in.Category,
		StartsAt:      in.Start,
		EndsAt:        in.End,
		Status:        RequestPending,
		ExpiresAt:     now.Add(s.cfg.RequestTTL),
	})
	if err != nil {
		return nil, nil, err
	}

	if err := s.audit.RecordTx(ctx, tx, actor, audit.ActionSlotRequested, audit.TargetSlotRequest, req.ID, map[string]interface{}{
		"class_id":       class.ID,
		"teacher_id":     in.TeacherID,
		"student_id":     in.StudentID,
		"starts_at":      in.Start,
		"ends_at":        in.End,
		"category":       in.Category,
		"entitlement_id": entitlementID,
		"force":          force,
	}); err != nil {
		return nil, nil, err
	}
	return class, req, nil
}

// AcceptSlotRequest confirms the class, the hold and the teacher's earnings
// in one transaction. An expired request is swept instead: its hold is
// refunded and ErrRequestExpired returned.
func (s *Service) AcceptSlotRequest(ctx context.Context, actor identity.Actor, requestID uuid.UUID) (*Class, error) {
	tx, err := database.BeginTx(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	req, err := s.openRequestTx(ctx, tx, actor, requestID)
	if err != nil {
		return nil, err
	}

	if req.Expired(s.now()) {
		return nil, s.sweepExpired(ctx, tx, req)
	}

	class, err := s.acceptTx(ctx, tx, actor, req, false)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}

	log.Info().Str("slot_request_id", req.ID.String()).Str("class_id", class.ID.String()).Msg("slot request accepted")
	s.publish(ctx, notify.EventSlotAccepted, class)
	return class, nil
}

// openRequestTx locks a request the actor may decide on and that is still pending
func (s *Service) openRequestTx(ctx context.Context, tx *sqlx.Tx, actor identity.Actor, requestID uuid.UUID) (*SlotRequest, error) {
	req, err := s.repo.LockRequestTx(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if err := authorizeTeacher(actor, req.TeacherID); err != nil {
		return nil, err
	}
	switch req.Status {
	case RequestPending:
		return req, nil
	case RequestExpired:
		return nil, ErrRequestExpired
	default:
		return nil, ErrInvalidTransition
	}
}

// sweepExpired commits the expiry of a lapsed request and reports it
func (s *Service) sweepExpired(ctx context.Context, tx *sqlx.Tx, req *SlotRequest) error {
	class, err := s.expireTx(ctx, tx, req)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}
	log.Info().Str("slot_request_id", req.ID.String()).Msg("slot request expired")
	s.publish(ctx, notify.EventSlotExpired, class)
	return ErrRequestExpired
}

func (s *Service) acceptTx(ctx context.Context, tx *sqlx.Tx, actor identity.Actor, req *SlotRequest, force bool) (*Class, error) {
	class, err := s.repo.LockClassTx(ctx, tx, req.ClassID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(class.Status, ClassConfirmed) {
		return nil, ErrInvalidTransition
	}

	// the window lock is held until commit so no other booking can
	// slip into the slot between this check and the confirmation
	if !force && !class.ForceBooked {
		if _, err := s.windows.LockCoveringTx(ctx, tx, class.TeacherID, class.StartsAt, class.EndsAt, availability.Wait); err != nil {
			if errors.Is(err, availability.ErrUnavailable) {
				return nil, ErrTeacherUnavailable
			}
			return nil, err
		}
	}

	overlaps, err := s.repo.OverlapTx(ctx, tx, SlotInput{
		StudentID: class.StudentID,
		TeacherID: class.TeacherID,
		Start:     class.StartsAt,
		End:       class.EndsAt,
		Category:  class.Category,
	}, class.ID)
	if err != nil {
		return nil, err
	}
	if overlaps {
		return nil, ErrSlotConflict
	}

	if req.EntitlementID.Valid {
		if err := s.ledger.ConfirmTx(ctx, tx, req.EntitlementID.UUID, req.HoldReference); err != nil {
			return nil, err
		}
	}

	rec, err := s.earnings.RecordLessonTx(ctx, tx, actor, earnings.Lesson{
		ClassID:   class.ID,
		TeacherID: class.TeacherID,
		StudentID: class.StudentID,
		Category:  class.Category,
		StartsAt:  class.StartsAt,
		EndsAt:    class.EndsAt,
	})
	if err != nil {
		return nil, err
	}

	class, err = s.repo.ConfirmClassTx(ctx, tx, class.ID, rec.ID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DecideRequestTx(ctx, tx, req.ID, RequestAccepted, nil, s.now().UTC()); err != nil {
		return nil, err
	}

	if err := s.audit.RecordTx(ctx, tx, actor, audit.ActionSlotAccepted, audit.TargetSlotRequest, req.ID, map[string]interface{}{
		"class_id":    class.ID,
		"earnings_id": rec.ID,
	}); err != nil {
		return nil, err
	}
	return class, nil
}

func (s *Service) expireTx(ctx context.Context, tx *sqlx.Tx, req *SlotRequest) (*Class, error) {
	const reason = "slot request expired"
	system := identity.System()

	if req.EntitlementID.Valid {
		if err := s.ledger.RefundTx(ctx, tx, req.EntitlementID.UUID, req.HoldReference, reason); err != nil {
			return nil, err
		}
	}
	if err := s.repo.DecideRequestTx(ctx, tx, req.ID, RequestExpired, nil, s.now().UTC()); err != nil {
		return nil, err
	}

	r := reason
	class, err := s.repo.CloseClassTx(ctx, tx, req.ClassID, ClassRequested, ClassCancelled, identity.RoleSystem, &r, nil, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.audit.RecordTx(ctx, tx, system, audit.ActionSlotExpired, audit.TargetSlotRequest, req.ID, map[string]interface{}{
		"class_id":   class.ID,
		"expired_at": req.ExpiresAt,
	}); err != nil {
		return nil, err
	}
	return class, nil
}

// DeclineSlotRequest refunds the hold and cancels the requested class
func (s *Service) DeclineSlotRequest(ctx context.Context, actor identity.Actor, requestID uuid.UUID, reason string) (*Class, error) {
	tx, err := database.BeginTx(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	req, err := s.openRequestTx(ctx, tx, actor, requestID)
	if err != nil {
		return nil, err
	}
	if req.Expired(s.now()) {
		return nil, s.sweepExpired(ctx, tx, req)
	}

	if reason == "" {
		reason = "declined by teacher"
	}
	if req.EntitlementID.Valid {
		if err := s.ledger.RefundTx(ctx, tx, req.EntitlementID.UUID, req.HoldReference, reason); err != nil {
			return nil, err
		}
	}
	now := s.now().UTC()
	if err := s.repo.DecideRequestTx(ctx, tx, req.ID, RequestDeclined, &reason, now); err != nil {
		return nil, err
	}
	class, err := s.repo.CloseClassTx(ctx, tx, req.ClassID, ClassRequested, ClassCancelled, actor.Role, &reason, nil, now)
	if err != nil {
		return nil, err
	}

	if err := s.audit.RecordTx(ctx, tx, actor, audit.ActionSlotDeclined, audit.TargetSlotRequest, req.ID, map[string]interface{}{
		"class_id": class.ID,
		"reason":   reason,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}

	log.Info().Str("slot_request_id", req.ID.String()).Msg("slot request declined")
	s.publish(ctx, notify.EventSlotDeclined, class)
	return class, nil
}

// CancelClass applies the cancellation policy for the actor's role
func (s *Service) CancelClass(ctx context.Context, actor identity.Actor, classID uuid.UUID, reason string) (*Class, error) {
	tx, err := database.BeginTx(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	class, err := s.CancelClassTx(ctx, tx, actor, classID, reason)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}

	log.Info().Str("class_id", class.ID.String()).Str("cancelled_by", actor.Role).Msg("class cancelled")
	s.publish(ctx, notify.EventClassCancelled, class)
	return class, nil
}

// CancelClassTx cancels inside the caller's transaction. Used by the series
// generator to cancel many occurrences atomically.
func (s *Service) CancelClassTx(ctx context.Context, tx *sqlx.Tx, actor identity.Actor, classID uuid.UUID, reason string) (*Class, error) {
	class, err := s.repo.LockClassTx(ctx, tx, classID)
	if err != nil {
		return nil, err
	}
	if err := authorizeParty(actor, class); err != nil {
		return nil, err
	}
	if !CanTransition(class.Status, ClassCancelled) {
		return nil, ErrInvalidTransition
	}
	if reason == "" {
		reason = "cancelled by " + actor.Role
	}

	now := s.now().UTC()
	outcome := CancellationOutcome(actor.Role, class.Status, class.StartsAt, now, s.cfg.LateCancelWindow)

	if err := s.settleTx(ctx, tx, actor, class, outcome, reason); err != nil {
		return nil, err
	}
	if class.Status == ClassRequested && class.SlotRequestID.Valid {
		err := s.repo.DecideRequestTx(ctx, tx, class.SlotRequestID.UUID, RequestDeclined, &reason, now)
		if err != nil && !errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
	}

	from := class.Status
	class, err = s.repo.CloseClassTx(ctx, tx, class.ID, from, ClassCancelled, actor.Role, &reason, nil, now)
	if err != nil {
		return nil, err
	}

	if err := s.audit.RecordTx(ctx, tx, actor, audit.ActionClassCancelled, audit.TargetClass, class.ID, map[string]interface{}{
		"from":          from,
		"reason":        reason,
		"refunded":      outcome.Refund && class.EntitlementID.Valid,
		"earnings_void": outcome.VoidEarnings,
	}); err != nil {
		return nil, err
	}
	return class, nil
}

// settleTx returns the unit and voids the pay as the outcome dictates
func (s *Service) settleTx(ctx context.Context, tx *sqlx.Tx, actor identity.Actor, class *Class, outcome Outcome, reason string) error {
	if outcome.Refund && class.EntitlementID.Valid && class.HoldReference != nil {
		if err := s.ledger.RefundTx(ctx, tx, class.EntitlementID.UUID, *class.HoldReference, reason); err != nil {
			return err
		}
	}
	if outcome.VoidEarnings {
		if _, err := s.earnings.VoidForClassTx(ctx, tx, actor, class.ID, reason); err != nil {
			return err
		}
	}
	return nil
}

// CompleteClass marks a confirmed lesson as held
func (s *Service) CompleteClass(ctx context.Context, actor identity.Actor, classID uuid.UUID) (*Class, error) {
	tx, err := database.BeginTx(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	class, err := s.repo.LockClassTx(ctx, tx, classID)
	if err != nil {
		return nil, err
	}
	if err := authorizeTeacher(actor, class.TeacherID); err != nil {
		return nil, err
	}
	if !CanTransition(class.Status, ClassCompleted) {
		return nil, ErrInvalidTransition
	}
	if s.now().Before(class.StartsAt) {
		return nil, ErrNotStarted
	}

	class, err = s.repo.CloseClassTx(ctx, tx, class.ID, ClassConfirmed, ClassCompleted, actor.Role, nil, nil, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.audit.RecordTx(ctx, tx, actor, audit.ActionClassCompleted, audit.TargetClass, class.ID, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}

	s.publish(ctx, notify.EventClassCompleted, class)
	return class, nil
}

// MarkNoShow records which party missed a started lesson
func (s *Service) MarkNoShow(ctx context.Context, actor identity.Actor, classID uuid.UUID, who Party) (*Class, error) {
	if who != PartyStudent && who != PartyTeacher {
		return nil, ErrInvalidTransition
	}

	tx, err := database.BeginTx(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	class, err := s.repo.LockClassTx(ctx, tx, classID)
	if err != nil {
		return nil, err
	}
	if err := authorizeNoShow(actor, class, who); err != nil {
		return nil, err
	}
	if class.Status != ClassConfirmed {
		return nil, ErrInvalidTransition
	}
	if s.now().Before(class.StartsAt) {
		return nil, ErrNotStarted
	}

	to, outcome := NoShowOutcome(who)
	reason := string(who) + " no-show"
	if err := s.settleTx(ctx, tx, actor, class, outcome, reason); err != nil {
		return nil, err
	}

	party := string(who)
	var reasonPtr *string
	if to == ClassCancelled {
		reasonPtr = &reason
	}
	class, err = s.repo.CloseClassTx(ctx, tx, class.ID, ClassConfirmed, to, actor.Role, reasonPtr, &party, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.audit.RecordTx(ctx, tx, actor, audit.ActionClassNoShow, audit.TargetClass, class.ID, map[string]interface{}{
		"who":           who,
		"status":        to,
		"refunded":      outcome.Refund && class.EntitlementID.Valid,
		"earnings_void": outcome.VoidEarnings,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}

	log.Info().Str("class_id", class.ID.String()).Str("who", party).Msg("no-show recorded")
	s.publish(ctx, notify.EventClassNoShow, class)
	return class, nil
}

// ForceBook books and confirms a class on behalf of an admin through the
// regular request and accept steps, without availability or entitlement checks.
func (s *Service) ForceBook(ctx context.Context, actor identity.Actor, in SlotInput) (*Class, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	tx, err := database.BeginTx(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	_, req, err := s.requestTx(ctx, tx, actor, in, true)
	if err != nil {
		return nil, err
	}
	class, err := s.acceptTx(ctx, tx, actor, req, true)
	if err != nil {
		return nil, err
	}
	if err := s.audit.RecordTx(ctx, tx, actor, audit.ActionClassForceBooked, audit.TargetClass, class.ID, map[string]interface{}{
		"student_id": class.StudentID,
		"teacher_id": class.TeacherID,
		"starts_at":  class.StartsAt,
		"ends_at":    class.EndsAt,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}

	log.Info().Str("class_id", class.ID.String()).Str("admin_id", actor.ID.String()).Msg("class force-booked")
	s.publish(ctx, notify.EventSlotAccepted, class)
	return class, nil
}

// BookOccurrence requests and accepts a slot in a single transaction.
// The series generator calls it once per week; the caller authorizes.
func (s *Service) BookOccurrence(ctx context.Context, actor identity.Actor, in SlotInput) (*Class, error) {
	tx, err := database.BeginTx(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	_, req, err := s.requestTx(ctx, tx, actor, in, false)
	if err != nil {
		return nil, err
	}
	class, err := s.acceptTx(ctx, tx, actor, req, false)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}

	s.publish(ctx, notify.EventSlotAccepted, class)
	return class, nil
}

// ListClasses scopes the listing to the actor's own classes unless admin
func (s *Service) ListClasses(ctx context.Context, actor identity.Actor, f ListFilter) ([]Class, int, error) {
	switch {
	case actor.Privileged():
	case actor.IsTeacher():
		f.TeacherID = &actor.ID
	case actor.IsStudent():
		f.StudentID = &actor.ID
	default:
		return nil, 0, ErrForbidden
	}

	classes, total, err := s.repo.ListClasses(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	if actor.IsStudent() {
		for i := range classes {
			classes[i].hideEarnings()
		}
	}
	return classes, total, nil
}

func (s *Service) GetClass(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Class, error) {
	class, err := s.repo.GetClass(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeParty(actor, class); err != nil {
		return nil, err
	}
	if actor.IsStudent() {
		class.hideEarnings()
	}
	return class, nil
}

// PendingRequests lists the open requests waiting on a teacher
func (s *Service) PendingRequests(ctx context.Context, actor identity.Actor, teacherID uuid.UUID) ([]SlotRequest, error) {
	if err := authorizeTeacher(actor, teacherID); err != nil {
		return nil, err
	}
	return s.repo.ListPendingRequests(ctx, teacherID)
}

func (c *Class) hideEarnings() {
	c.EarningsID = uuid.NullUUID{}
}

func (s *Service) publish(ctx context.Context, t notify.EventType, c *Class) {
	if c == nil {
		return
	}
	ev := notify.Event{
		Type:       t,
		Recipients: []uuid.UUID{c.StudentID, c.TeacherID},
		ClassID:    c.ID,
		Status:     string(c.Status),
		StartsAt:   &c.StartsAt,
		EndsAt:     &c.EndsAt,
		OccurredAt: s.now().UTC(),
	}
	if c.SeriesID.Valid {
		ev.SeriesID = c.SeriesID.UUID
	}
	s.notifier.Publish(ctx, ev)
}
