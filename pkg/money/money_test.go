package money

import "testing"

func TestFractionOfRoundsHalfUp(t *testing.T) {
	cases := []struct {
		amount   int64
		fraction float64
		want     int64
	}{
		{1_000_000, 0.015, 15_000},
		{100, 0.015, 2},  // 1.5 kobo rounds up
		{100, 0.014, 1},  // 1.4 kobo rounds down
		{333, 0.015, 5},  // 4.995
		{0, 0.015, 0},
		{1_000_000, 0, 0},
	}
	for _, tc := range cases {
		if got := FractionOf(tc.amount, tc.fraction); got != tc.want {
			t.Errorf("FractionOf(%d, %v) = %d, want %d", tc.amount, tc.fraction, got, tc.want)
		}
	}
}

func TestPercentOf(t *testing.T) {
	cases := []struct {
		amount  int64
		percent float64
		want    int64
	}{
		{500_000, 100, 500_000},
		{500_000, 50, 250_000},
		{100, 1.5, 2},
		{1_000_000, 1.5, 15_000},
		{999, 33.333, 333},
	}
	for _, tc := range cases {
		if got := PercentOf(tc.amount, tc.percent); got != tc.want {
			t.Errorf("PercentOf(%d, %v) = %d, want %d", tc.amount, tc.percent, got, tc.want)
		}
	}
}

func TestFromNaira(t *testing.T) {
	if got := FromNaira(15); got != 1500 {
		t.Errorf("FromNaira(15) = %d, want 1500", got)
	}
	if got := FromNaira(9685.005); got != 968501 {
		t.Errorf("FromNaira(9685.005) = %d, want 968501", got)
	}
}

func TestFormatNaira(t *testing.T) {
	cases := []struct {
		kobo int64
		want string
	}{
		{968_500, "₦9,685.00"},
		{1_000_000, "₦10,000.00"},
		{16_500, "₦165.00"},
		{5, "₦0.05"},
		{-150_000, "-₦1,500.00"},
		{123_456_789, "₦1,234,567.89"},
	}
	for _, tc := range cases {
		if got := FormatNaira(tc.kobo); got != tc.want {
			t.Errorf("FormatNaira(%d) = %q, want %q", tc.kobo, got, tc.want)
		}
	}
}
