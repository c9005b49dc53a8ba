package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/edusuite/billing/internal/feeschedule/domain"
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

func (r *repository) CreateStructure(ctx context.Context, structure domain.FeeStructure) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO fee_structures (
			id, school_id, kind, key, name, currency, due_at, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		structure.ID,
		structure.SchoolID,
		structure.Kind,
		structure.Key,
		structure.Name,
		structure.Currency,
		structure.DueAt,
		structure.Active,
		structure.CreatedAt,
		structure.UpdatedAt,
	).Error
}

func (r *repository) CreateItem(ctx context.Context, item domain.FeeItem) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO fee_items (
			id, fee_structure_id, category, category_rank, class_level, boarders_only, amount, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.FeeStructureID,
		item.Category,
		item.CategoryRank,
		item.ClassLevel,
		item.BoardersOnly,
		item.Amount,
		item.CreatedAt,
	).Error
}

func (r *repository) GetStructure(ctx context.Context, schoolID snowflake.ID, key string) (*domain.FeeStructure, error) {
	var structure domain.FeeStructure
	err := r.db.WithContext(ctx).First(&structure, "school_id = ? AND key = ?", schoolID, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &structure, nil
}

func (r *repository) ListItems(ctx context.Context, feeStructureID snowflake.ID) ([]domain.FeeItem, error) {
	var items []domain.FeeItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT * FROM fee_items WHERE fee_structure_id = ? ORDER BY category_rank ASC, category ASC`,
		feeStructureID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListStructures(ctx context.Context, schoolID snowflake.ID) ([]domain.FeeStructure, error) {
	var structures []domain.FeeStructure
	err := r.db.WithContext(ctx).Raw(
		`SELECT * FROM fee_structures WHERE school_id = ? ORDER BY created_at ASC`,
		schoolID,
	).Scan(&structures).Error
	if err != nil {
		return nil, err
	}
	return structures, nil
}
