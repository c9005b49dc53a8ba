package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Direction represents debit or credit postings.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// SourceType identifies the business event a ledger entry settles.
type SourceType string

const (
	// SourceTypePayment is a settled payment intent.
	SourceTypePayment SourceType = "payment"
	// SourceTypeAdjustment is a manual correction posted by operations.
	SourceTypeAdjustment SourceType = "adjustment"
)

// AccountCode identifies a chart-of-accounts slot. Accounts are scoped
// per school and created lazily on first posting.
type AccountCode string

const (
	// AccountCodeCash is the money collected by the gateway.
	AccountCodeCash AccountCode = "cash"
	// AccountCodeSchoolPayable is the school's share awaiting settlement.
	AccountCodeSchoolPayable AccountCode = "school_payable"
	// AccountCodePlatformRevenue is the platform's cut of each payment.
	AccountCodePlatformRevenue AccountCode = "platform_revenue"
	// AccountCodeGatewayFees is the gateway's processing charge.
	AccountCodeGatewayFees AccountCode = "gateway_fees"
)

// LedgerAccount defines a chart-of-accounts entry.
type LedgerAccount struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	SchoolID  snowflake.ID `gorm:"not null;index;uniqueIndex:ux_ledger_accounts_school_code,priority:1"`
	Code      AccountCode  `gorm:"type:text;not null;uniqueIndex:ux_ledger_accounts_school_code,priority:2"`
	Name      string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LedgerAccount) TableName() string { return "ledger_accounts" }

// LedgerEntry captures the immutable header for a financial event.
// The (school_id, source_type, source_id) key makes postings idempotent.
type LedgerEntry struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	SchoolID   snowflake.ID `gorm:"not null;index"`
	SourceType SourceType   `gorm:"type:text;not null;index"`
	SourceID   snowflake.ID `gorm:"not null;index"`
	Currency   string       `gorm:"type:text;not null"`
	OccurredAt time.Time    `gorm:"not null"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// LedgerEntryLine is a double-entry posting line.
type LedgerEntryLine struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	LedgerEntryID snowflake.ID `gorm:"not null;index"`
	AccountID     snowflake.ID `gorm:"not null;index"`
	Direction     Direction    `gorm:"type:text;not null"`
	Currency      string       `gorm:"type:text;not null"`
	Amount        int64        `gorm:"not null"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LedgerEntryLine) TableName() string { return "ledger_entry_lines" }
