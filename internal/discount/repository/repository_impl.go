package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/edusuite/billing/internal/discount/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, schoolID snowflake.ID) (*domain.DiscountPolicy, error) {
	var policy domain.DiscountPolicy
	err := r.db.WithContext(ctx).First(&policy, "school_id = ?", schoolID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r *repository) Upsert(ctx context.Context, policy domain.DiscountPolicy) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO discount_policies (
			id, school_id, staff_waiver_enabled, staff_waiver_percent, staff_waiver_cap,
			early_bird_enabled, early_bird_days, early_bird_percent, scholarship_enabled,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (school_id) DO UPDATE SET
			staff_waiver_enabled = excluded.staff_waiver_enabled,
			staff_waiver_percent = excluded.staff_waiver_percent,
			staff_waiver_cap = excluded.staff_waiver_cap,
			early_bird_enabled = excluded.early_bird_enabled,
			early_bird_days = excluded.early_bird_days,
			early_bird_percent = excluded.early_bird_percent,
			scholarship_enabled = excluded.scholarship_enabled,
			updated_at = excluded.updated_at`,
		policy.ID,
		policy.SchoolID,
		policy.StaffWaiverEnabled,
		policy.StaffWaiverPercent,
		policy.StaffWaiverCap,
		policy.EarlyBirdEnabled,
		policy.EarlyBirdDays,
		policy.EarlyBirdPercent,
		policy.ScholarshipEnabled,
		policy.CreatedAt,
		policy.UpdatedAt,
	).Error
}
