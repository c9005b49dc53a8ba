package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ListFilter narrows List. Zero values mean "any".
type ListFilter struct {
	SchoolID  snowflake.ID
	StudentID snowflake.ID
	Status    Status
	Limit     int
}

// StatusUpdate is the column set applied by a guarded status change.
type StatusUpdate struct {
	To        Status
	SentAt    *time.Time
	UpdatedAt time.Time
}

// Repository is the storage port for invoices. Methods take the db
// handle so services can run several calls in one transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, inv *Invoice, items []InvoiceItem) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByNumber(ctx context.Context, db *gorm.DB, number string) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Invoice, error)
	ListItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceItem, error)

	// UpdateStatus applies upd only when the invoice's current status
	// is in from. The boolean reports whether a row changed.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []Status, upd StatusUpdate) (bool, error)

	// MarkOverdue flips sent invoices whose due date passed. Partially
	// paid invoices keep their status; the received money is the more
	// useful signal.
	MarkOverdue(ctx context.Context, db *gorm.DB, asOf time.Time) (int64, error)
}
