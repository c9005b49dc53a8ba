package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, schoolID snowflake.ID) (*DiscountPolicy, error)
	Upsert(ctx context.Context, policy DiscountPolicy) error
}
