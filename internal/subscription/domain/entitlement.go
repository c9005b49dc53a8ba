package domain

import (
	"time"

	"github.com/lib/pq"
)

// Entitlement is what a school is actually allowed to do right now:
// the caps and features of its plan, gated by subscription state.
// Active is false once the subscription lapses even though the plan
// fields still describe what the school had.
type Entitlement struct {
	PlanCode    PlanCode       `json:"plan_code"`
	Status      Status         `json:"status"`
	Active      bool           `json:"active"`
	MaxStudents int            `json:"max_students"`
	MaxStaff    int            `json:"max_staff"`
	StorageMB   int64          `json:"storage_mb"`
	Features    pq.StringArray `json:"features"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// Has reports whether the feature is part of the entitled plan. It
// does not consider Active; callers gate on that separately.
func (e *Entitlement) Has(feature string) bool {
	for _, f := range e.Features {
		if f == feature {
			return true
		}
	}
	return false
}
