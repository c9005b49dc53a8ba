package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/edusuite/billing/internal/subscription/domain"
)

const subscriptionColumns = `id, school_id, plan_code, status, billing_period,
	period_start, period_end, auto_renew, cancelled_at, metadata, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sub *domain.SchoolSubscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO school_subscriptions (
			id, school_id, plan_code, status, billing_period, period_start,
			period_end, auto_renew, cancelled_at, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID,
		sub.SchoolID,
		string(sub.PlanCode),
		string(sub.Status),
		string(sub.BillingPeriod),
		sub.PeriodStart,
		sub.PeriodEnd,
		sub.AutoRenew,
		sub.CancelledAt,
		sub.Metadata,
		sub.CreatedAt,
		sub.UpdatedAt,
	).Error
}

func (r *repo) FindBySchool(ctx context.Context, db *gorm.DB, schoolID snowflake.ID) (*domain.SchoolSubscription, error) {
	var item domain.SchoolSubscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM school_subscriptions WHERE school_id = ? LIMIT 1`,
		schoolID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []domain.Status, upd domain.StatusUpdate) (bool, error) {
	if len(from) == 0 || upd.To == "" {
		return false, nil
	}

	set := []string{"status = ?", "updated_at = ?"}
	args := []any{string(upd.To), upd.UpdatedAt}
	if upd.PlanCode != nil {
		set = append(set, "plan_code = ?")
		args = append(args, string(*upd.PlanCode))
	}
	if upd.PeriodStart != nil {
		set = append(set, "period_start = ?")
		args = append(args, *upd.PeriodStart)
	}
	if upd.PeriodEnd != nil {
		set = append(set, "period_end = ?")
		args = append(args, *upd.PeriodEnd)
	}
	if upd.AutoRenew != nil {
		set = append(set, "auto_renew = ?")
		args = append(args, *upd.AutoRenew)
	}
	if upd.CancelledAt != nil {
		set = append(set, "cancelled_at = ?")
		args = append(args, *upd.CancelledAt)
	}

	args = append(args, id)
	placeholders := make([]string, 0, len(from))
	for _, status := range from {
		placeholders = append(placeholders, "?")
		args = append(args, string(status))
	}

	query := fmt.Sprintf(
		`UPDATE school_subscriptions SET %s WHERE id = ? AND status IN (%s)`,
		strings.Join(set, ", "),
		strings.Join(placeholders, ", "),
	)
	res := db.WithContext(ctx).Exec(query, args...)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkPastDue(ctx context.Context, db *gorm.DB, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE school_subscriptions
		 SET status = ?, updated_at = ?
		 WHERE status = ? AND auto_renew AND period_end < ?`,
		string(domain.StatusPastDue),
		at,
		string(domain.StatusActive),
		at,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) Expire(ctx context.Context, db *gorm.DB, at, pastDueCutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE school_subscriptions
		 SET status = ?, updated_at = ?
		 WHERE (status = ? AND period_end < ?)
		    OR (status = ? AND NOT auto_renew AND period_end < ?)
		    OR (status = ? AND period_end < ?)`,
		string(domain.StatusExpired),
		at,
		string(domain.StatusTrialing),
		at,
		string(domain.StatusActive),
		at,
		string(domain.StatusPastDue),
		pastDueCutoff,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
