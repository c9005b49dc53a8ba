// Package domain contains persistence models for the school service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// School represents an onboarded school and its settlement details.
type School struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name           string            `gorm:"type:text;not null" json:"name"`
	Code           string            `gorm:"type:text;not null;uniqueIndex:ux_schools_code" json:"code"`
	ContactEmail   string            `gorm:"type:text;column:contact_email" json:"contact_email"`
	SubaccountCode string            `gorm:"type:text;column:subaccount_code" json:"subaccount_code"`
	BankCode       string            `gorm:"type:text;column:bank_code" json:"bank_code"`
	AccountNumber  string            `gorm:"type:text;column:account_number" json:"account_number"`
	AccountName    string            `gorm:"type:text;column:account_name" json:"account_name"`
	Active         bool              `gorm:"not null;default:true" json:"active"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (School) TableName() string { return "schools" }

// Student represents an enrolled student whose fees are billed.
type Student struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	SchoolID           snowflake.ID `gorm:"not null;index" json:"school_id"`
	FullName           string       `gorm:"type:text;not null" json:"full_name"`
	ClassLevel         string       `gorm:"type:text;not null" json:"class_level"`
	Boarder            bool         `gorm:"not null;default:false" json:"boarder"`
	StaffChild         bool         `gorm:"not null;default:false" json:"staff_child"`
	ScholarshipPercent float64      `gorm:"not null;default:0" json:"scholarship_percent"`
	ParentEmail        string       `gorm:"type:text;column:parent_email" json:"parent_email"`
	Active             bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Student) TableName() string { return "students" }
