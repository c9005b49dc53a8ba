// Package domain contains the discount policy model and the composition
// engine that turns a base amount into a payable amount.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// RuleName identifies one discount rule in a breakdown.
type RuleName string

const (
	RuleStaffWaiver RuleName = "staff_waiver"
	RuleEarlyBird   RuleName = "early_bird"
	RuleScholarship RuleName = "scholarship"
)

// DiscountPolicy is a school's discount configuration. Percentages are in
// [0,100]; StaffWaiverCap is kobo, 0 means uncapped.
type DiscountPolicy struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	SchoolID           snowflake.ID `gorm:"not null;uniqueIndex:ux_discount_policies_school" json:"school_id"`
	StaffWaiverEnabled bool         `gorm:"not null;default:true" json:"staff_waiver_enabled"`
	StaffWaiverPercent float64      `gorm:"not null;default:100" json:"staff_waiver_percent"`
	StaffWaiverCap     int64        `gorm:"not null;default:0" json:"staff_waiver_cap"`
	EarlyBirdEnabled   bool         `gorm:"not null;default:true" json:"early_bird_enabled"`
	EarlyBirdDays      int          `gorm:"not null;default:30" json:"early_bird_days"`
	EarlyBirdPercent   float64      `gorm:"not null;default:10" json:"early_bird_percent"`
	ScholarshipEnabled bool         `gorm:"not null;default:true" json:"scholarship_enabled"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (DiscountPolicy) TableName() string { return "discount_policies" }

// DefaultPolicy mirrors the platform defaults a school starts with.
func DefaultPolicy(schoolID snowflake.ID) DiscountPolicy {
	return DiscountPolicy{
		SchoolID:           schoolID,
		StaffWaiverEnabled: true,
		StaffWaiverPercent: 100,
		EarlyBirdEnabled:   true,
		EarlyBirdDays:      30,
		EarlyBirdPercent:   10,
		ScholarshipEnabled: true,
	}
}

// AppliedRule records one rule's contribution to a breakdown.
type AppliedRule struct {
	Rule    RuleName `json:"rule"`
	Percent float64  `json:"percent"`
	Amount  int64    `json:"amount"`
}

// Breakdown is the result of composing every applicable rule on a base
// amount. Payable is always within [0, BaseAmount].
type Breakdown struct {
	BaseAmount    int64         `json:"base_amount"`
	TotalDiscount int64         `json:"total_discount"`
	Payable       int64         `json:"payable"`
	Applied       []AppliedRule `json:"applied"`
}
