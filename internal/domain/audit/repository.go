package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tutorhub/tutorhub-api/internal/pkg/identity"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// RecordTx appends an entry inside the caller's transaction.
// diff is marshalled to JSON; nil leaves the column empty.
func (r *Repository) RecordTx(ctx context.Context, tx *sqlx.Tx, actor identity.Actor, action, targetType string, targetID uuid.UUID, diff interface{}) error {
	var raw interface{}
	if diff != nil {
		b, err := json.Marshal(diff)
		if err != nil {
			return fmt.Errorf("marshal audit diff: %w", err)
		}
		raw = string(b)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_logs (actor_id, actor_role, action, target_type, target_id, diff)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, nullUUID(actor.ID), actor.Role, action, targetType, nullUUID(targetID), raw)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, filter Filter) ([]Entry, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.ActorID != nil {
		add("actor_id = $%d", *filter.ActorID)
	}
	if filter.Action != nil {
		add("action = $%d", *filter.Action)
	}
	if filter.TargetType != nil {
		add("target_type = $%d", *filter.TargetType)
	}
	if filter.TargetID != nil {
		add("target_id = $%d", *filter.TargetID)
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at < $%d", *filter.To)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM audit_logs WHERE `+cond, args...); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT id, actor_id, actor_role, action, target_type, target_id, diff, created_at
		FROM audit_logs
		WHERE %s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d
	`, cond, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	entries := []Entry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func nullUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}
