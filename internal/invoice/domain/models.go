// Package domain contains invoice models and the issuing contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status tracks an invoice through its lifecycle: draft, sent to the
// parent, then settled, overdue or cancelled. Settlement is driven by
// payment reconciliation, never by hand.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusSent          Status = "sent"
	StatusPaid          Status = "paid"
	StatusPartiallyPaid Status = "partially_paid"
	StatusOverdue       Status = "overdue"
	StatusCancelled     Status = "cancelled"
)

// Valid reports whether s names a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusPartiallyPaid,
		StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// Closed reports whether the invoice accepts no further settlement.
func (s Status) Closed() bool {
	return s == StatusPaid || s == StatusCancelled
}

// Kind selects the document series an invoice belongs to. The values
// double as payment intent purposes.
type Kind string

const (
	KindTermFees    Kind = "term_fees"
	KindApplication Kind = "application"
	KindAdmission   Kind = "admission"
)

// Valid reports whether k names a known document series.
func (k Kind) Valid() bool {
	return k == KindTermFees || k == KindApplication || k == KindAdmission
}

// Invoice is one bill issued to a student's parent. Amounts are minor
// units (kobo). TotalAmount is what the parent actually owes after
// discounts; AmountPaid is maintained by payment reconciliation.
type Invoice struct {
	ID             snowflake.ID      `json:"id" gorm:"primaryKey"`
	SchoolID       snowflake.ID      `json:"school_id" gorm:"not null;index"`
	StudentID      snowflake.ID      `json:"student_id" gorm:"not null;index"`
	InvoiceNumber  string            `json:"invoice_number" gorm:"type:text;not null;uniqueIndex:ux_invoices_number"`
	Kind           Kind              `json:"kind" gorm:"type:text;not null"`
	StructureKey   string            `json:"structure_key,omitempty" gorm:"type:text"`
	Status         Status            `json:"status" gorm:"type:text;not null;index"`
	Currency       string            `json:"currency" gorm:"type:text;not null"`
	GrossAmount    int64             `json:"gross_amount" gorm:"not null"`
	DiscountAmount int64             `json:"discount_amount" gorm:"not null;default:0"`
	TotalAmount    int64             `json:"total_amount" gorm:"not null"`
	AmountPaid     int64             `json:"amount_paid" gorm:"not null;default:0"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	DueAt          *time.Time        `json:"due_at,omitempty" gorm:"index"`
	SentAt         *time.Time        `json:"sent_at,omitempty"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Outstanding is the unpaid balance, never negative.
func (i *Invoice) Outstanding() int64 {
	if out := i.TotalAmount - i.AmountPaid; out > 0 {
		return out
	}
	return 0
}

// InvoiceItem is one fee line of an invoice, ordered by CategoryRank.
type InvoiceItem struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	InvoiceID    snowflake.ID `json:"invoice_id" gorm:"not null;index"`
	Category     string       `json:"category" gorm:"type:text;not null"`
	CategoryRank int          `json:"category_rank" gorm:"not null;default:0"`
	Amount       int64        `json:"amount" gorm:"not null"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }
