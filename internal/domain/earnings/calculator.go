package earnings

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var secondsPerHour = decimal.NewFromInt(3600)

// MinorExponent is the number of minor-unit digits for a currency
func MinorExponent(currency string) int32 {
	switch strings.ToLower(currency) {
	case "jpy", "krw", "vnd", "clp":
		return 0
	case "kwd", "bhd", "omr":
		return 3
	default:
		return 2
	}
}

// Calculate returns hourlyRate × duration in the currency's minor unit,
// rounded half away from zero. Sub-second remainders are ignored.
func Calculate(hourlyRate decimal.Decimal, duration time.Duration, currency string) int64 {
	seconds := decimal.NewFromInt(int64(duration / time.Second))
	scale := decimal.New(1, MinorExponent(currency))
	return hourlyRate.Mul(seconds).Mul(scale).DivRound(secondsPerHour, 0).IntPart()
}

// FormatMinor renders a minor-unit amount as a fixed-point major-unit string
func FormatMinor(amount int64, currency string) string {
	exp := MinorExponent(currency)
	return decimal.New(amount, -exp).StringFixed(exp)
}

// RateCategory maps a lesson category to the rate it is paid at.
// Trial lessons are paid at the one-to-one rate.
func RateCategory(category string) string {
	if category == "trial" {
		return "one_to_one"
	}
	return category
}

// Defaults are the system hourly rates persisted for teachers without one
type Defaults struct {
	OneToOne decimal.Decimal
	Group    decimal.Decimal
	Currency string
}

// ParseDefaults builds Defaults from configuration strings
func ParseDefaults(oneToOne, group, currency string) (Defaults, error) {
	o, err := decimal.NewFromString(oneToOne)
	if err != nil {
		return Defaults{}, err
	}
	g, err := decimal.NewFromString(group)
	if err != nil {
		return Defaults{}, err
	}
	return Defaults{OneToOne: o, Group: g, Currency: strings.ToLower(currency)}, nil
}

func (d Defaults) For(rateCategory string) decimal.Decimal {
	if rateCategory == "group" {
		return d.Group
	}
	return d.OneToOne
}
