package entitlement

import (
	"testing"
	"time"
)

func TestUsable(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		e    Entitlement
		want bool
	}{
		{"plain", Entitlement{Remaining: 1}, true},
		{"empty", Entitlement{Remaining: 0}, false},
		{"not yet valid", Entitlement{Remaining: 1, ValidFrom: &future}, false},
		{"window closed", Entitlement{Remaining: 1, ValidUntil: &past}, false},
		{"expired", Entitlement{Remaining: 1, ExpiresAt: &past}, false},
		{"inside window", Entitlement{Remaining: 1, ValidFrom: &past, ValidUntil: &future, ExpiresAt: &future}, true},
		{"expires exactly now", Entitlement{Remaining: 1, ExpiresAt: &now}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.Usable(now); got != tt.want {
				t.Fatalf("Usable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBalanceIdentity(t *testing.T) {
	// two holds, one refunded: 3 - 2 + 1 = 2
	b := Balance{Total: 3, Remaining: 2, Holds: 2, Refunds: 1}
	if !b.Consistent() {
		t.Fatalf("expected consistent balance, expected=%d", b.Expected())
	}

	b.Remaining = 3
	if b.Consistent() {
		t.Fatal("expected inconsistency to be detected")
	}
}

func TestCategoryBookable(t *testing.T) {
	if CategoryVideoCourse.Bookable() {
		t.Fatal("video course access is not bookable")
	}
	for _, c := range []Category{CategoryOneToOne, CategoryGroup, CategoryTrial} {
		if !c.Bookable() || !c.Valid() {
			t.Fatalf("%s should be valid and bookable", c)
		}
	}
	if Category("podcast").Valid() {
		t.Fatal("unknown category must be invalid")
	}
}
