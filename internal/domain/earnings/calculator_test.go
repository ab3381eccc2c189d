package earnings

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		rate     string
		duration time.Duration
		currency string
		want     int64
	}{
		{"one hour at 15", "15.00", time.Hour, "usd", 1500},
		{"half hour at 15", "15.00", 30 * time.Minute, "usd", 750},
		{"50 minutes at 15", "15", 50 * time.Minute, "usd", 1250},
		{"rounds half up", "17.33", 7 * time.Minute, "usd", 202},
		{"ninety minutes group", "10.00", 90 * time.Minute, "usd", 1500},
		{"zero decimal currency", "1500", 45 * time.Minute, "jpy", 1125},
		{"zero rate", "0", time.Hour, "usd", 0},
		{"under a minute", "60.00", 45 * time.Second, "usd", 75},
		{"partial minute kept", "60.00", 60*time.Minute + 30*time.Second, "usd", 6050},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(decimal.RequireFromString(tt.rate), tt.duration, tt.currency)
			if got != tt.want {
				t.Fatalf("Calculate() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCalculateHalfCentRounding(t *testing.T) {
	// 0.25 per hour for 6 minutes = 0.025, rounds to 0.03
	got := Calculate(decimal.RequireFromString("0.25"), 6*time.Minute, "usd")
	if got != 3 {
		t.Fatalf("expected 3 minor units, got %d", got)
	}
}

func TestFormatMinor(t *testing.T) {
	if got := FormatMinor(1250, "usd"); got != "12.50" {
		t.Fatalf("FormatMinor usd = %q", got)
	}
	if got := FormatMinor(1125, "jpy"); got != "1125" {
		t.Fatalf("FormatMinor jpy = %q", got)
	}
}

func TestDefaults(t *testing.T) {
	d, err := ParseDefaults("15.00", "10.00", "USD")
	if err != nil {
		t.Fatalf("parse defaults: %v", err)
	}
	if !d.For(RateCategory("group")).Equal(decimal.NewFromInt(10)) {
		t.Fatal("group lessons should use the group default")
	}
	if !d.For(RateCategory("trial")).Equal(decimal.NewFromInt(15)) {
		t.Fatal("trial lessons should use the one-to-one default")
	}
	if d.Currency != "usd" {
		t.Fatalf("currency should be normalised, got %q", d.Currency)
	}

	if _, err := ParseDefaults("abc", "10", "usd"); err == nil {
		t.Fatal("expected parse error")
	}
}
