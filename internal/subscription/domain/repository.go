package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// StatusUpdate carries the fields a lifecycle transition may touch.
// Nil pointers leave the column alone.
type StatusUpdate struct {
	To          Status
	PlanCode    *PlanCode
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	AutoRenew   *bool
	CancelledAt *time.Time
	UpdatedAt   time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *SchoolSubscription) error
	FindBySchool(ctx context.Context, db *gorm.DB, schoolID snowflake.ID) (*SchoolSubscription, error)

	// UpdateStatus applies upd only when the row is still in one of the
	// from statuses. Reports whether a row was written.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []Status, upd StatusUpdate) (bool, error)

	// MarkPastDue flips active auto-renew subscriptions whose period
	// lapsed before at.
	MarkPastDue(ctx context.Context, db *gorm.DB, at time.Time) (int64, error)

	// Expire closes everything past its window: lapsed trials, lapsed
	// non-renewing actives, and past-due rows older than the grace cutoff.
	Expire(ctx context.Context, db *gorm.DB, at, pastDueCutoff time.Time) (int64, error)
}
