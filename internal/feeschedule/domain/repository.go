package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateStructure(ctx context.Context, structure FeeStructure) error
	CreateItem(ctx context.Context, item FeeItem) error
	GetStructure(ctx context.Context, schoolID snowflake.ID, key string) (*FeeStructure, error)
	ListItems(ctx context.Context, feeStructureID snowflake.ID) ([]FeeItem, error)
	ListStructures(ctx context.Context, schoolID snowflake.ID) ([]FeeStructure, error)
}
