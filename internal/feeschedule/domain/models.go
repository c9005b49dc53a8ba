// Package domain contains fee schedule models and the resolver contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// StructureKind distinguishes term fee schedules from application-type ones.
type StructureKind string

const (
	StructureKindTerm        StructureKind = "term"
	StructureKindApplication StructureKind = "application"
)

// FeeStructure is a school's fee schedule for one term or application type.
type FeeStructure struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	SchoolID  snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_fee_structures_school_key,priority:1" json:"school_id"`
	Kind      StructureKind `gorm:"type:text;not null" json:"kind"`
	Key       string        `gorm:"type:text;not null;uniqueIndex:ux_fee_structures_school_key,priority:2" json:"key"`
	Name      string        `gorm:"type:text;not null" json:"name"`
	Currency  string        `gorm:"type:text;not null" json:"currency"`
	DueAt     time.Time     `gorm:"not null" json:"due_at"`
	Active    bool          `gorm:"not null;default:true" json:"active"`
	Items     []FeeItem     `gorm:"-" json:"items"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (FeeStructure) TableName() string { return "fee_structures" }

// FeeItem is one line of a fee structure. ClassLevel empty applies to every
// class; BoardersOnly items are charged to boarders alone.
type FeeItem struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	FeeStructureID snowflake.ID `gorm:"not null;index" json:"fee_structure_id"`
	Category       string       `gorm:"type:text;not null" json:"category"`
	CategoryRank   int          `gorm:"not null" json:"category_rank"`
	ClassLevel     string       `gorm:"type:text" json:"class_level"`
	BoardersOnly   bool         `gorm:"not null;default:false" json:"boarders_only"`
	Amount         int64        `gorm:"not null" json:"amount"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (FeeItem) TableName() string { return "fee_items" }

// FeeLine is one resolved line a payer owes.
type FeeLine struct {
	Category     string `json:"category"`
	CategoryRank int    `json:"category_rank"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}
