package entitlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/tutorhub/tutorhub-api/internal/domain/audit"
	"github.com/tutorhub/tutorhub-api/internal/pkg/database"
	"github.com/tutorhub/tutorhub-api/internal/pkg/identity"
)

type Service struct {
	db    *sqlx.DB
	repo  *Repository
	audit *audit.Repository
}

func NewService(db *sqlx.DB, repo *Repository, auditRepo *audit.Repository) *Service {
	return &Service{db: db, repo: repo, audit: auditRepo}
}

// Grant creates an entitlement on plan purchase or admin grant
func (s *Service) Grant(ctx context.Context, actor identity.Actor, in GrantInput) (*Entitlement, error) {
	if !in.Category.Valid() {
		return nil, ErrInvalidCategory
	}
	if in.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if in.Reference == "" {
		in.Reference = "grant:" + uuid.NewString()
	}
	if in.Source == "" {
		in.Source = "admin_grant"
	}

	tx, err := database.BeginTx(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	e, err := s.repo.CreateTx(ctx, tx, in)
	if err != nil {
		return nil, err
	}

	if err := s.audit.RecordTx(ctx, tx, actor, audit.ActionEntitlementGrant, audit.TargetEntitlement, e.ID, map[string]interface{}{
		"student_id": e.StudentID,
		"category":   e.Category,
		"quantity":   e.Total,
		"reference":  in.Reference,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}

	log.Info().
		Str("entitlement_id", e.ID.String()).
		Str("student_id", e.StudentID.String()).
		Str("category", string(e.Category)).
		Int("quantity", e.Total).
		Msg("entitlement granted")
	return e, nil
}

// Wallet lists a student's entitlements. Students read their own; admins any.
func (s *Service) Wallet(ctx context.Context, actor identity.Actor, studentID uuid.UUID) ([]Entitlement, error) {
	if !actor.Privileged() && actor.ID != studentID {
		return nil, ErrForbidden
	}
	return s.repo.ListByStudent(ctx, studentID)
}

// History lists a student's ledger entries, newest first
func (s *Service) History(ctx context.Context, actor identity.Actor, studentID uuid.UUID, limit, offset int) ([]LedgerEntry, int, error) {
	if !actor.Privileged() && actor.ID != studentID {
		return nil, 0, ErrForbidden
	}
	return s.repo.ListEntries(ctx, studentID, limit, offset)
}

// Reconcile reports whether the stored counter matches the ledger
func (s *Service) Reconcile(ctx context.Context, entitlementID uuid.UUID) (*Balance, error) {
	b, err := s.repo.Balance(ctx, entitlementID)
	if err != nil {
		return nil, err
	}
	if !b.Consistent() {
		log.Error().
			Str("entitlement_id", entitlementID.String()).
			Int("remaining", b.Remaining).
			Int("expected", b.Expected()).
			Msg("entitlement ledger out of balance")
	}
	return b, nil
}
