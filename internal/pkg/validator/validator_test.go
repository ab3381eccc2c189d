package validator

import (
	"testing"
	"time"
)

type bookingInput struct {
	Type  string    `json:"entitlement_type" validate:"required,bookable"`
	Start time.Time `json:"start_utc" validate:"required"`
	End   time.Time `json:"end_utc" validate:"required,gtfield=Start"`
}

func TestValidateUsesJSONNames(t *testing.T) {
	now := time.Now()
	errs := Validate(bookingInput{Type: "video_course", Start: now, End: now.Add(-time.Hour)})

	if errs["entitlement_type"] == "" {
		t.Fatalf("expected entitlement_type error, got %v", errs)
	}
	if errs["end_utc"] == "" {
		t.Fatalf("expected end_utc error, got %v", errs)
	}
}

func TestValidatePasses(t *testing.T) {
	now := time.Now()
	if errs := Validate(bookingInput{Type: "group", Start: now, End: now.Add(time.Hour)}); errs != nil {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestCategoryVar(t *testing.T) {
	if err := ValidateVar("video_course", "category"); err != nil {
		t.Fatalf("video_course should be a valid category: %v", err)
	}
	if err := ValidateVar("podcast", "category"); err == nil {
		t.Fatal("podcast should be rejected")
	}
}
