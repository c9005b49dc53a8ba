package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateSchoolRequest) (*SchoolResponse, error)
	GetByID(ctx context.Context, id string) (*SchoolResponse, error)
	List(ctx context.Context) ([]SchoolResponse, error)
	// AttachSubaccount records the gateway-provisioned settlement
	// destination on the school. Fee splits start flowing to it on the
	// next intent created.
	AttachSubaccount(ctx context.Context, schoolID string, sub SubaccountDetails) (*SchoolResponse, error)
	RegisterStudent(ctx context.Context, schoolID string, req RegisterStudentRequest) (*StudentResponse, error)
	GetStudent(ctx context.Context, schoolID string, studentID string) (*Student, error)
}

type CreateSchoolRequest struct {
	Name           string `json:"name"`
	ContactEmail   string `json:"contact_email"`
	SubaccountCode string `json:"subaccount_code"`
	BankCode       string `json:"bank_code"`
	AccountNumber  string `json:"account_number"`
}

type RegisterStudentRequest struct {
	FullName           string  `json:"full_name"`
	ClassLevel         string  `json:"class_level"`
	Boarder            bool    `json:"boarder"`
	StaffChild         bool    `json:"staff_child"`
	ScholarshipPercent float64 `json:"scholarship_percent"`
	ParentEmail        string  `json:"parent_email"`
}

type SchoolResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Code           string    `json:"code"`
	ContactEmail   string    `json:"contact_email"`
	SubaccountCode string    `json:"subaccount_code"`
	AccountName    string    `json:"account_name"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

type StudentResponse struct {
	ID                 string  `json:"id"`
	SchoolID           string  `json:"school_id"`
	FullName           string  `json:"full_name"`
	ClassLevel         string  `json:"class_level"`
	Boarder            bool    `json:"boarder"`
	StaffChild         bool    `json:"staff_child"`
	ScholarshipPercent float64 `json:"scholarship_percent"`
}

// StudentContext is the billing-relevant slice of a student used by the fee
// resolver and the discount engine.
type StudentContext struct {
	StudentID          snowflake.ID
	SchoolID           snowflake.ID
	ClassLevel         string
	Boarder            bool
	StaffChild         bool
	ScholarshipPercent float64
}

// BillingContext builds the resolver input from a stored student row.
func (s *Student) BillingContext() StudentContext {
	return StudentContext{
		StudentID:          s.ID,
		SchoolID:           s.SchoolID,
		ClassLevel:         s.ClassLevel,
		Boarder:            s.Boarder,
		StaffChild:         s.StaffChild,
		ScholarshipPercent: s.ScholarshipPercent,
	}
}

var (
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidSchool      = errors.New("invalid_school")
	ErrSchoolNotFound     = errors.New("school_not_found")
	ErrInvalidBank        = errors.New("invalid_bank")
	ErrDuplicateCode      = errors.New("duplicate_school_code")
	ErrInvalidStudent     = errors.New("invalid_student")
	ErrStudentNotFound    = errors.New("student_not_found")
	ErrInvalidScholarship = errors.New("invalid_scholarship_percent")
)
