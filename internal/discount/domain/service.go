package domain

import (
	"context"
	"errors"
	"time"

	schooldomain "github.com/edusuite/billing/internal/school/domain"
)

type Service interface {
	// PolicyFor returns the school's stored policy, or the platform default
	// when the school has never configured one.
	PolicyFor(ctx context.Context, schoolID string) (*DiscountPolicy, error)
	SetPolicy(ctx context.Context, schoolID string, req UpsertPolicyRequest) (*DiscountPolicy, error)
	// Preview applies the school's policy to a base amount without writing
	// anything.
	Preview(ctx context.Context, schoolID string, baseAmount int64, student schooldomain.StudentContext, closesAt time.Time) (*Breakdown, error)
}

type UpsertPolicyRequest struct {
	StaffWaiverEnabled bool    `json:"staff_waiver_enabled"`
	StaffWaiverPercent float64 `json:"staff_waiver_percent"`
	StaffWaiverCap     int64   `json:"staff_waiver_cap"`
	EarlyBirdEnabled   bool    `json:"early_bird_enabled"`
	EarlyBirdDays      int     `json:"early_bird_days"`
	EarlyBirdPercent   float64 `json:"early_bird_percent"`
	ScholarshipEnabled bool    `json:"scholarship_enabled"`
}

var ErrInvalidDiscountConfig = errors.New("invalid_discount_config")
