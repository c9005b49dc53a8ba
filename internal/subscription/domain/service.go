package domain

import (
	"context"
	"errors"
)

type StartRequest struct {
	SchoolID      string         `json:"school_id"`
	PlanCode      string         `json:"plan_code"`
	BillingPeriod string         `json:"billing_period"`
	TrialDays     int            `json:"trial_days,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// SweepResult summarizes one expiry sweep pass.
type SweepResult struct {
	PastDue int64 `json:"past_due"`
	Expired int64 `json:"expired"`
}

type Service interface {
	// Plans returns the static catalog.
	Plans(ctx context.Context) []Plan

	// Start opens a school's subscription: trialing when trial days are
	// requested, active otherwise. One subscription per school.
	Start(ctx context.Context, req StartRequest) (*SchoolSubscription, error)

	Get(ctx context.Context, schoolID string) (*SchoolSubscription, error)

	// Activate confirms payment: trials and past-due subscriptions become
	// active, already-active ones renew from the end of the current period.
	Activate(ctx context.Context, schoolID string) (*SchoolSubscription, error)

	// ChangePlan swaps the plan on an open subscription. The billing
	// period window is untouched.
	ChangePlan(ctx context.Context, schoolID, planCode string) (*SchoolSubscription, error)

	Cancel(ctx context.Context, schoolID string) (*SchoolSubscription, error)

	// Entitlement resolves the school's effective caps and features.
	Entitlement(ctx context.Context, schoolID string) (*Entitlement, error)

	// SweepExpiry pushes lapsed subscriptions along: active ones with
	// auto-renew go past_due, everything else past its window expires.
	SweepExpiry(ctx context.Context) (SweepResult, error)
}

var (
	ErrPlanNotFound         = errors.New("plan_not_found")
	ErrInvalidBillingPeriod = errors.New("invalid_billing_period")
	ErrInvalidTrialDays     = errors.New("invalid_trial_days")
	ErrSubscriptionExists   = errors.New("subscription_exists")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrSubscriptionClosed   = errors.New("subscription_closed")
)
