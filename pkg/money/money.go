// Package money provides arithmetic on NGN amounts. All values are
// int64 kobo (minor units); fractional math goes through decimal so
// rounding is exact.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const minorUnitsPerNaira = 100

// FractionOf returns amount * fraction rounded half up to the nearest
// kobo. Fractions are rates such as 0.015 for 1.5%.
func FractionOf(amount int64, fraction float64) int64 {
	if amount == 0 || fraction == 0 {
		return 0
	}
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromFloat(fraction)).
		Round(0).
		IntPart()
}

// PercentOf returns percent (0-100) of amount rounded half up.
func PercentOf(amount int64, percent float64) int64 {
	if amount == 0 || percent == 0 {
		return 0
	}
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromFloat(percent)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

// FromNaira converts a naira value to kobo, rounded half up.
func FromNaira(naira float64) int64 {
	return decimal.NewFromFloat(naira).
		Mul(decimal.NewFromInt(minorUnitsPerNaira)).
		Round(0).
		IntPart()
}

// ToNaira converts kobo to a naira decimal with two places.
func ToNaira(kobo int64) decimal.Decimal {
	return decimal.NewFromInt(kobo).Div(decimal.NewFromInt(minorUnitsPerNaira))
}

// FormatNaira renders kobo as a human readable naira string,
// e.g. 968500 -> "₦9,685.00".
func FormatNaira(kobo int64) string {
	sign := ""
	if kobo < 0 {
		sign = "-"
		kobo = -kobo
	}
	naira := kobo / minorUnitsPerNaira
	minor := kobo % minorUnitsPerNaira
	return fmt.Sprintf("%s₦%s.%02d", sign, groupThousands(naira), minor)
}

func groupThousands(v int64) string {
	s := fmt.Sprintf("%d", v)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
