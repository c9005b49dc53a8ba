// Package domain holds the platform plan catalog and per-school
// subscription models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Status is the lifecycle state of a school's subscription.
type Status string

const (
	StatusTrialing  Status = "trialing"
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTrialing, StatusActive, StatusPastDue, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// Closed reports whether the subscription can no longer change state.
func (s Status) Closed() bool {
	return s == StatusCancelled || s == StatusExpired
}

// BillingPeriod is how often a school is charged. Schools on the
// Nigerian academic calendar pay per term; annual buys the full year.
type BillingPeriod string

const (
	PeriodTerm   BillingPeriod = "term"
	PeriodAnnual BillingPeriod = "annual"
)

func (p BillingPeriod) Valid() bool {
	return p == PeriodTerm || p == PeriodAnnual
}

type PlanCode string

const (
	PlanBasic    PlanCode = "basic"
	PlanStandard PlanCode = "standard"
	PlanPremium  PlanCode = "premium"
)

// Plan describes one tier of the catalog: caps, pricing and the
// feature set it unlocks. Amounts are kobo.
type Plan struct {
	Code        PlanCode       `json:"code"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	TermPrice   int64          `json:"term_price"`
	AnnualPrice int64          `json:"annual_price"`
	MaxStudents int            `json:"max_students"`
	MaxStaff    int            `json:"max_staff"`
	StorageMB   int64          `json:"storage_mb"`
	Features    pq.StringArray `json:"features"`
	Popular     bool           `json:"popular"`
	Rank        int            `json:"rank"`
}

// PriceFor returns the plan price for a billing period.
func (p Plan) PriceFor(period BillingPeriod) int64 {
	if period == PeriodAnnual {
		return p.AnnualPrice
	}
	return p.TermPrice
}

// SchoolSubscription is a school's agreement to one plan. A school has
// at most one row; renewals move the period window forward instead of
// inserting history.
type SchoolSubscription struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	SchoolID      snowflake.ID      `gorm:"not null;uniqueIndex:ux_school_subscriptions_school" json:"school_id"`
	PlanCode      PlanCode          `gorm:"type:text;not null" json:"plan_code"`
	Status        Status            `gorm:"type:text;not null;index" json:"status"`
	BillingPeriod BillingPeriod     `gorm:"type:text;not null" json:"billing_period"`
	PeriodStart   time.Time         `gorm:"not null" json:"period_start"`
	PeriodEnd     time.Time         `gorm:"not null;index" json:"period_end"`
	AutoRenew     bool              `gorm:"not null;default:true" json:"auto_renew"`
	CancelledAt   *time.Time        `json:"cancelled_at,omitempty"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null" json:"updated_at"`
}

func (SchoolSubscription) TableName() string { return "school_subscriptions" }

// InPeriod reports whether the paid-for window still covers at.
func (s *SchoolSubscription) InPeriod(at time.Time) bool {
	return at.Before(s.PeriodEnd)
}
