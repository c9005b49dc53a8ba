package domain

import (
	"math"
	"time"

	schooldomain "github.com/edusuite/billing/internal/school/domain"
	"github.com/edusuite/billing/pkg/money"
)

// Input carries everything Apply needs. Now and ClosesAt are explicit so the
// engine stays a pure function of its inputs.
type Input struct {
	BaseAmount int64
	Student    schooldomain.StudentContext
	Now        time.Time
	ClosesAt   time.Time
}

// Apply composes the discount rules in fixed order: staff-child waiver on the
// base, early-bird on the post-waiver remainder, scholarship on what is left.
// Disabled rules are skipped entirely.
func Apply(policy DiscountPolicy, in Input) (Breakdown, error) {
	if err := Validate(policy); err != nil {
		return Breakdown{}, err
	}
	if in.Student.ScholarshipPercent < 0 || in.Student.ScholarshipPercent > 100 {
		return Breakdown{}, ErrInvalidDiscountConfig
	}

	breakdown := Breakdown{BaseAmount: in.BaseAmount}
	if in.BaseAmount <= 0 {
		return breakdown, nil
	}

	remainder := in.BaseAmount

	if policy.StaffWaiverEnabled && in.Student.StaffChild {
		waiver := money.PercentOf(in.BaseAmount, policy.StaffWaiverPercent)
		if policy.StaffWaiverCap > 0 && waiver > policy.StaffWaiverCap {
			waiver = policy.StaffWaiverCap
		}
		if waiver > remainder {
			waiver = remainder
		}
		remainder -= waiver
		breakdown.Applied = append(breakdown.Applied, AppliedRule{
			Rule:    RuleStaffWaiver,
			Percent: policy.StaffWaiverPercent,
			Amount:  waiver,
		})
	}

	if policy.EarlyBirdEnabled && remainder > 0 && daysUntil(in.Now, in.ClosesAt) >= policy.EarlyBirdDays {
		earlyBird := money.PercentOf(remainder, policy.EarlyBirdPercent)
		if earlyBird > remainder {
			earlyBird = remainder
		}
		remainder -= earlyBird
		breakdown.Applied = append(breakdown.Applied, AppliedRule{
			Rule:    RuleEarlyBird,
			Percent: policy.EarlyBirdPercent,
			Amount:  earlyBird,
		})
	}

	if policy.ScholarshipEnabled && remainder > 0 && in.Student.ScholarshipPercent > 0 {
		scholarship := money.PercentOf(remainder, in.Student.ScholarshipPercent)
		if scholarship > remainder {
			scholarship = remainder
		}
		remainder -= scholarship
		breakdown.Applied = append(breakdown.Applied, AppliedRule{
			Rule:    RuleScholarship,
			Percent: in.Student.ScholarshipPercent,
			Amount:  scholarship,
		})
	}

	breakdown.Payable = remainder
	breakdown.TotalDiscount = in.BaseAmount - remainder
	return breakdown, nil
}

// Validate rejects percentages outside [0,100] and negative fixed amounts.
func Validate(policy DiscountPolicy) error {
	if policy.StaffWaiverPercent < 0 || policy.StaffWaiverPercent > 100 {
		return ErrInvalidDiscountConfig
	}
	if policy.EarlyBirdPercent < 0 || policy.EarlyBirdPercent > 100 {
		return ErrInvalidDiscountConfig
	}
	if policy.StaffWaiverCap < 0 {
		return ErrInvalidDiscountConfig
	}
	if policy.EarlyBirdDays < 0 {
		return ErrInvalidDiscountConfig
	}
	return nil
}

// daysUntil floors so a window closing in 29.9 days counts as 29 full days.
func daysUntil(now, closesAt time.Time) int {
	return int(math.Floor(closesAt.Sub(now).Hours() / 24))
}
