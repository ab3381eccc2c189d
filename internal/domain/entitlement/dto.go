package entitlement

import (
	"time"

	"github.com/google/uuid"
)

// GrantRequest is the admin payload for POST /api/admin/entitlements
type GrantRequest struct {
	StudentID  uuid.UUID  `json:"student_id" validate:"required"`
	Category   string     `json:"category" validate:"required,category"`
	Quantity   int        `json:"quantity" validate:"gte=1,lte=1000"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Source     string     `json:"source,omitempty" validate:"max=64"`
	Reference  string     `json:"reference,omitempty" validate:"max=128"`
}

func (r GrantRequest) toInput() GrantInput {
	return GrantInput{
		StudentID:  r.StudentID,
		Category:   Category(r.Category),
		Quantity:   r.Quantity,
		ValidFrom:  utc(r.ValidFrom),
		ValidUntil: utc(r.ValidUntil),
		ExpiresAt:  utc(r.ExpiresAt),
		Source:     r.Source,
		Reference:  r.Reference,
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// WalletItem is one entitlement as shown in the wallet
type WalletItem struct {
	Entitlement
	Usable bool `json:"usable"`
}

func toWallet(items []Entitlement, now time.Time) []WalletItem {
	out := make([]WalletItem, 0, len(items))
	for i := range items {
		out = append(out, WalletItem{Entitlement: items[i], Usable: items[i].Usable(now)})
	}
	return out
}
