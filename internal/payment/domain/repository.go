package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// IntentFilter narrows ListIntents. Zero values mean "any".
type IntentFilter struct {
	SchoolID  snowflake.ID
	StudentID snowflake.ID
	Status    IntentStatus
	Limit     int
}

// IntentTransition is the column set applied by a guarded status
// update. Nil pointer fields keep their current value.
type IntentTransition struct {
	To             IntentStatus
	AmountReceived *int64
	GatewayFee     *int64
	NetAmount      *int64
	Channel        string
	FailureReason  string
	PaidAt         *time.Time
	UpdatedAt      time.Time

	// ExpectReceived, when set, adds amount_received to the update
	// guard so concurrent charges against one reference cannot both
	// apply against the same starting balance.
	ExpectReceived *int64
}

// Repository is the storage port for payment reconciliation. Methods
// take the db handle so services can run several calls in one
// transaction.
type Repository interface {
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*EventRecord, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error

	InsertIntent(ctx context.Context, db *gorm.DB, intent *PaymentIntent) error
	FindIntent(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PaymentIntent, error)
	FindIntentByReference(ctx context.Context, db *gorm.DB, reference string) (*PaymentIntent, error)
	ListIntents(ctx context.Context, db *gorm.DB, filter IntentFilter) ([]PaymentIntent, error)

	// TransitionIntent applies tr only when the intent's current
	// status is in from. The boolean reports whether a row changed;
	// callers use a false result to detect lost races.
	TransitionIntent(ctx context.Context, db *gorm.DB, id snowflake.ID, from []IntentStatus, tr IntentTransition) (bool, error)

	// FailIntentsByInvoice fails every still-open intent of an
	// invoice. Intents holding money (partially_paid) are left alone.
	FailIntentsByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, reason string, at time.Time) (int64, error)

	// MarkOverdue flips pending intents whose due date (created_at
	// when no due date was set) fell before cutoff.
	MarkOverdue(ctx context.Context, db *gorm.DB, cutoff time.Time, at time.Time) (int64, error)

	// ListReminderCandidates returns pending intents due inside
	// (from, to] that have no reminder mark for daysBefore yet.
	ListReminderCandidates(ctx context.Context, db *gorm.DB, from, to time.Time, daysBefore int, limit int) ([]ReminderCandidate, error)

	// InsertReminderMark records a reminder send. A false return means
	// the mark already existed and the caller should skip the send.
	InsertReminderMark(ctx context.Context, db *gorm.DB, id snowflake.ID, intentID snowflake.ID, daysBefore int, at time.Time) (bool, error)

	InsertReconciliationError(ctx context.Context, db *gorm.DB, recErr *ReconciliationError) error
	ListReconciliationErrors(ctx context.Context, db *gorm.DB, limit int) ([]ReconciliationError, error)
}
