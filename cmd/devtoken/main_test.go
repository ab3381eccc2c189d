package main

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tutorhub/tutorhub-api/internal/pkg/jwt"
)

func TestMint(t *testing.T) {
	id := uuid.New()

	token, userID, err := mint("secret", "teacher", id.String(), time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if userID != id {
		t.Fatalf("expected %s, got %s", id, userID)
	}

	claims, err := jwt.NewService("secret", time.Hour).ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != id || claims.Role != "teacher" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestMintRejectsBadInput(t *testing.T) {
	if _, _, err := mint("secret", "owner", "", time.Hour); err == nil {
		t.Fatal("expected unknown role error")
	}
	if _, _, err := mint("secret", "student", "not-a-uuid", time.Hour); err == nil {
		t.Fatal("expected invalid id error")
	}
	if _, id, err := mint("secret", "student", "", time.Hour); err != nil || id == uuid.Nil {
		t.Fatalf("random id expected: %s %v", id, err)
	}
}
