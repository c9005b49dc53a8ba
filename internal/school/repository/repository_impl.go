package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edusuite/billing/internal/school/domain"
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

func (r *repository) CreateSchool(ctx context.Context, school domain.School) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO schools (
			id, name, code, contact_email, subaccount_code, bank_code,
			account_number, account_name, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		school.ID,
		school.Name,
		school.Code,
		school.ContactEmail,
		school.SubaccountCode,
		school.BankCode,
		school.AccountNumber,
		school.AccountName,
		school.Active,
		school.CreatedAt,
		school.UpdatedAt,
	).Error
}

func (r *repository) GetSchool(ctx context.Context, id snowflake.ID) (*domain.School, error) {
	var school domain.School
	err := r.db.WithContext(ctx).First(&school, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &school, nil
}

func (r *repository) GetSchoolByCode(ctx context.Context, code string) (*domain.School, error) {
	var school domain.School
	err := r.db.WithContext(ctx).First(&school, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &school, nil
}

func (r *repository) ListSchools(ctx context.Context) ([]domain.School, error) {
	var schools []domain.School
	err := r.db.WithContext(ctx).Raw(
		`SELECT * FROM schools WHERE active = TRUE ORDER BY created_at ASC`,
	).Scan(&schools).Error
	if err != nil {
		return nil, err
	}
	return schools, nil
}

func (r *repository) UpdateSubaccount(ctx context.Context, id snowflake.ID, sub domain.SubaccountDetails, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE schools
		 SET subaccount_code = ?, bank_code = ?, account_number = ?, account_name = ?, updated_at = ?
		 WHERE id = ?`,
		sub.SubaccountCode,
		sub.BankCode,
		sub.AccountNumber,
		sub.AccountName,
		at,
		id,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) CreateStudent(ctx context.Context, student domain.Student) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO students (
			id, school_id, full_name, class_level, boarder, staff_child,
			scholarship_percent, parent_email, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		student.ID,
		student.SchoolID,
		student.FullName,
		student.ClassLevel,
		student.Boarder,
		student.StaffChild,
		student.ScholarshipPercent,
		student.ParentEmail,
		student.Active,
		student.CreatedAt,
		student.UpdatedAt,
	).Error
}

func (r *repository) GetStudent(ctx context.Context, schoolID snowflake.ID, id snowflake.ID) (*domain.Student, error) {
	var student domain.Student
	err := r.db.WithContext(ctx).First(&student, "school_id = ? AND id = ?", schoolID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &student, nil
}
