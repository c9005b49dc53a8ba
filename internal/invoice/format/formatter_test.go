package format

import (
	"testing"
	"time"
)

func TestNumber(t *testing.T) {
	issuedAt := time.Date(2026, time.August, 14, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		prefix     string
		schoolCode string
		suffix     string
		want       string
	}{
		{
			name:       "term fees invoice",
			prefix:     "INV",
			schoolCode: "sunrise-academy",
			suffix:     "1a2b3c4d",
			want:       "INV/SUN/2608/1A2B3C4D",
		},
		{
			name:       "application series",
			prefix:     "APP",
			schoolCode: "golden-gate",
			suffix:     "FFEE0011",
			want:       "APP/GOL/2608/FFEE0011",
		},
		{
			name:       "short school code kept whole",
			prefix:     "ADM",
			schoolCode: "g2",
			suffix:     "00000001",
			want:       "ADM/G2/2608/00000001",
		},
		{
			name:       "unusable code falls back",
			prefix:     "INV",
			schoolCode: "---",
			suffix:     "ABCDEF01",
			want:       "INV/SCH/2608/ABCDEF01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Number(tt.prefix, tt.schoolCode, issuedAt, tt.suffix)
			if got != tt.want {
				t.Fatalf("Number() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShortSchoolCodeSkipsSeparators(t *testing.T) {
	if got := ShortSchoolCode("a-b-c-d"); got != "ABC" {
		t.Fatalf("ShortSchoolCode() = %q, want ABC", got)
	}
}

func TestNewSuffixShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		suffix := NewSuffix()
		if len(suffix) != 8 {
			t.Fatalf("suffix %q has length %d, want 8", suffix, len(suffix))
		}
		for _, r := range suffix {
			if !((r >= '0' && r <= '9') || (r >= 'A' && r <= 'F')) {
				t.Fatalf("suffix %q contains non-hex rune %q", suffix, r)
			}
		}
		if seen[suffix] {
			t.Fatalf("suffix %q repeated within one batch", suffix)
		}
		seen[suffix] = true
	}
}
