package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	discountdomain "github.com/edusuite/billing/internal/discount/domain"
	feescheduledomain "github.com/edusuite/billing/internal/feeschedule/domain"
	schooldomain "github.com/edusuite/billing/internal/school/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	demoSchoolName = "Demo Grammar School"
	demoSchoolCode = "demo-grammar-school"
	demoTermKey    = "2026/2027-T1"
)

// EnsureDemoSchool seeds one school with a term fee structure and the
// default discount policy so a fresh development install has data to
// bill against. Production environments never call this.
func EnsureDemoSchool(db *gorm.DB, node *snowflake.Node) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed id node is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		school, err := ensureSchoolTx(ctx, tx, node)
		if err != nil {
			return err
		}
		if err := ensureTermFeesTx(ctx, tx, node, school.ID); err != nil {
			return err
		}
		return ensureDiscountPolicyTx(ctx, tx, node, school.ID)
	})
}

func ensureSchoolTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (schooldomain.School, error) {
	var school schooldomain.School
	err := tx.WithContext(ctx).Where("code = ?", demoSchoolCode).First(&school).Error
	if err == nil {
		return school, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return schooldomain.School{}, err
	}

	now := time.Now().UTC()
	school = schooldomain.School{
		ID:           node.Generate(),
		Name:         demoSchoolName,
		Code:         demoSchoolCode,
		ContactEmail: "bursar@demo-grammar.example",
		Active:       true,
		Metadata:     datatypes.JSONMap{"seeded": true},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.WithContext(ctx).Create(&school).Error; err != nil {
		return schooldomain.School{}, err
	}
	return school, nil
}

func ensureTermFeesTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, schoolID snowflake.ID) error {
	var existing feescheduledomain.FeeStructure
	err := tx.WithContext(ctx).
		Where("school_id = ? AND key = ?", schoolID, demoTermKey).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	structure := feescheduledomain.FeeStructure{
		ID:        node.Generate(),
		SchoolID:  schoolID,
		Kind:      feescheduledomain.StructureKindTerm,
		Key:       demoTermKey,
		Name:      "First Term 2026/2027",
		Currency:  "NGN",
		DueAt:     now.AddDate(0, 2, 0),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&structure).Error; err != nil {
		return err
	}

	// Amounts in kobo.
	items := []feescheduledomain.FeeItem{
		{Category: "tuition", CategoryRank: 1, Amount: 15_000_000},
		{Category: "development levy", CategoryRank: 2, Amount: 2_500_000},
		{Category: "books", CategoryRank: 3, Amount: 1_800_000},
		{Category: "boarding", CategoryRank: 4, BoardersOnly: true, Amount: 9_000_000},
	}
	for i := range items {
		items[i].ID = node.Generate()
		items[i].FeeStructureID = structure.ID
		items[i].CreatedAt = now
	}
	return tx.WithContext(ctx).Create(&items).Error
}

func ensureDiscountPolicyTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, schoolID snowflake.ID) error {
	var existing discountdomain.DiscountPolicy
	err := tx.WithContext(ctx).Where("school_id = ?", schoolID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	policy := discountdomain.DefaultPolicy(schoolID)
	policy.ID = node.Generate()
	policy.CreatedAt = now
	policy.UpdatedAt = now
	return tx.WithContext(ctx).Create(&policy).Error
}
