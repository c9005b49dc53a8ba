// Package format builds human-readable document numbers. Numbers
// follow the Nigerian front-office convention PFX/CODE/YYMM/SUFFIX,
// e.g. INV/SUN/2608/1A2B3C4D: staff read the issuing school and month
// straight off the number.
package format

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FallbackSchoolCode is used when a school code yields no usable
// characters.
const FallbackSchoolCode = "SCH"

// Number formats a document number from its parts.
//
// This function is PURE:
// - No side effects
// - No DB access
// - Fully deterministic
func Number(prefix string, schoolCode string, issuedAt time.Time, suffix string) string {
	return fmt.Sprintf("%s/%s/%s/%s",
		strings.ToUpper(strings.TrimSpace(prefix)),
		ShortSchoolCode(schoolCode),
		issuedAt.Format("0601"),
		strings.ToUpper(strings.TrimSpace(suffix)),
	)
}

// NewSuffix mints the random tail of a document number: eight hex
// characters, unique enough that two clerks issuing in the same school
// and month never collide.
func NewSuffix() string {
	u := uuid.New()
	return strings.ToUpper(hex.EncodeToString(u[:4]))
}

// ShortSchoolCode condenses a school code slug ("sunrise-academy") to
// the three-character block used in document numbers ("SUN").
func ShortSchoolCode(code string) string {
	var b strings.Builder
	for _, r := range code {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() == 3 {
			break
		}
	}
	if b.Len() == 0 {
		return FallbackSchoolCode
	}
	return strings.ToUpper(b.String())
}
