package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/tutorhub/tutorhub-api/internal/domain/audit"
	"github.com/tutorhub/tutorhub-api/internal/pkg/database"
	"github.com/tutorhub/tutorhub-api/internal/pkg/identity"
)

const maxWindow = 24 * time.Hour

type Service struct {
	db    *sqlx.DB
	repo  *Repository
	audit *audit.Repository
	now   func() time.Time
}

func NewService(db *sqlx.DB, repo *Repository, auditRepo *audit.Repository) *Service {
	return &Service{db: db, repo: repo, audit: auditRepo, now: time.Now}
}

// ValidateRange checks a proposed window against the current time
func ValidateRange(start, end, now time.Time) error {
	if !end.After(start) {
		return ErrInvalidRange
	}
	if end.Sub(start) > maxWindow {
		return ErrTooLong
	}
	if !end.After(now) {
		return ErrInPast
	}
	return nil
}

// Add opens a window for the teacher; admins may open one for any teacher
func (s *Service) Add(ctx context.Context, actor identity.Actor, teacherID uuid.UUID, start, end time.Time) (*Window, error) {
	if !actor.IsAdmin() && actor.ID != teacherID {
		return nil, ErrNotOwner
	}
	start, end = start.UTC(), end.UTC()
	if err := ValidateRange(start, end, s.now().UTC()); err != nil {
		return nil, err
	}

	tx, err := database.BeginTx(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	w, err := s.repo.CreateTx(ctx, tx, teacherID, start, end)
	if err != nil {
		return nil, err
	}

	if err := s.audit.RecordTx(ctx, tx, actor, audit.ActionAvailabilityAdded, audit.TargetAvailability, w.ID, w); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}

	log.Info().Str("teacher_id", teacherID.String()).Str("window_id", w.ID.String()).Msg("availability window added")
	return w, nil
}

func (s *Service) Remove(ctx context.Context, actor identity.Actor, id uuid.UUID) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && existing.TeacherID != actor.ID {
		return ErrNotOwner
	}

	tx, err := database.BeginTx(ctx, s.db)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	w, err := s.repo.DeleteTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := s.audit.RecordTx(ctx, tx, actor, audit.ActionAvailabilityDrop, audit.TargetAvailability, w.ID, w); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, teacherID uuid.UUID, from, to time.Time) ([]Window, error) {
	return s.repo.ListByTeacher(ctx, teacherID, from.UTC(), to.UTC())
}
