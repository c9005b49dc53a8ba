package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvalidSchool        = errors.New("invalid_school")
	ErrInvalidSourceType    = errors.New("invalid_source_type")
	ErrInvalidSourceID      = errors.New("invalid_source_id")
	ErrInvalidCurrency      = errors.New("invalid_currency")
	ErrInvalidOccurredAt    = errors.New("invalid_occurred_at")
	ErrInvalidEntryLines    = errors.New("invalid_entry_lines")
	ErrInvalidAccount       = errors.New("invalid_account")
	ErrInvalidLineDirection = errors.New("invalid_line_direction")
	ErrInvalidLineAmount    = errors.New("invalid_line_amount")
	ErrUnbalancedEntry      = errors.New("unbalanced_entry")
)

// EntryLine is one posting leg of a new entry. Accounts are addressed
// by code; the service resolves or creates the per-school account row.
type EntryLine struct {
	AccountCode AccountCode
	Direction   Direction
	Amount      int64
}

// NewEntry describes a balanced double-entry posting.
type NewEntry struct {
	SchoolID   snowflake.ID
	SourceType SourceType
	SourceID   snowflake.ID
	Currency   string
	OccurredAt time.Time
	Lines      []EntryLine
}

// AccountBalance is the net position of one account, where debits add
// and credits subtract.
type AccountBalance struct {
	Code    AccountCode `json:"code"`
	Name    string      `json:"name"`
	Balance int64       `json:"balance"`
}

// Service posts and reads the double-entry ledger.
type Service interface {
	// CreateEntry writes the entry and its lines atomically. The db
	// handle may be an open transaction so callers can post alongside
	// their own writes. Replays of the same (school, source) pair are
	// dropped and reported as inserted=false.
	CreateEntry(ctx context.Context, db *gorm.DB, entry NewEntry) (bool, error)

	ListEntries(ctx context.Context, schoolID snowflake.ID, limit int) ([]LedgerEntry, error)

	// AccountBalances sums posted lines per account for one school.
	AccountBalances(ctx context.Context, schoolID snowflake.ID, currency string) ([]AccountBalance, error)
}

// ValidateBalanced checks that debits equal credits across the lines.
func ValidateBalanced(lines []EntryLine) error {
	var debits, credits int64
	for _, line := range lines {
		switch line.Direction {
		case DirectionDebit:
			debits += line.Amount
		case DirectionCredit:
			credits += line.Amount
		default:
			return ErrInvalidLineDirection
		}
	}
	if debits != credits {
		return ErrUnbalancedEntry
	}
	return nil
}
