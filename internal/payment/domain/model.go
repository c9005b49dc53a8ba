package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// IntentStatus tracks a payment intent through reconciliation.
//
// pending is the entry state. paid and failed are terminal. overdue is
// not terminal: parents routinely settle after the due date, so an
// overdue intent still accepts a successful charge.
type IntentStatus string

const (
	IntentPending       IntentStatus = "pending"
	IntentPaid          IntentStatus = "paid"
	IntentFailed        IntentStatus = "failed"
	IntentOverdue       IntentStatus = "overdue"
	IntentPartiallyPaid IntentStatus = "partially_paid"
)

// Terminal reports whether no further transition is allowed.
func (s IntentStatus) Terminal() bool {
	return s == IntentPaid || s == IntentFailed
}

// Payment purposes. The purpose selects the document series an intent
// settles (term fees, application fees, admission fees).
const (
	PurposeTermFees    = "term_fees"
	PurposeApplication = "application"
	PurposeAdmission   = "admission"
)

// PaymentIntent is one expected payment. The gateway echoes Reference
// back on webhook events, which is how events find their intent.
type PaymentIntent struct {
	ID             snowflake.ID      `json:"id" gorm:"primaryKey"`
	SchoolID       snowflake.ID      `json:"school_id" gorm:"not null;index"`
	StudentID      snowflake.ID      `json:"student_id" gorm:"not null;index"`
	InvoiceID      *snowflake.ID     `json:"invoice_id,omitempty" gorm:"index"`
	Reference      string            `json:"reference" gorm:"type:text;not null;uniqueIndex:ux_payment_intents_reference"`
	Purpose        string            `json:"purpose" gorm:"type:text;not null"`
	AmountDue      int64             `json:"amount_due" gorm:"not null"`
	AmountReceived int64             `json:"amount_received" gorm:"not null;default:0"`
	Currency       string            `json:"currency" gorm:"type:text;not null"`
	Status         IntentStatus      `json:"status" gorm:"type:text;not null;index"`
	PlatformFee    int64             `json:"platform_fee" gorm:"not null;default:0"`
	GatewayFee     int64             `json:"gateway_fee" gorm:"not null;default:0"`
	NetAmount      int64             `json:"net_amount" gorm:"not null;default:0"`
	Channel        string            `json:"channel,omitempty" gorm:"type:text"`
	FailureReason  string            `json:"failure_reason,omitempty" gorm:"type:text"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`
	DueAt          *time.Time        `json:"due_at,omitempty" gorm:"index"`
	CreatedAt      time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PaymentIntent) TableName() string { return "payment_intents" }

// EventRecord is a webhook event as received, deduplicated on
// (provider, provider_event_id). Payloads are sanitized by the adapter
// before they reach storage.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	Reference       string         `json:"reference" gorm:"type:text;index"`
	Amount          int64          `json:"amount" gorm:"not null;default:0"`
	Fees            int64          `json:"fees" gorm:"not null;default:0"`
	Currency        string         `json:"currency" gorm:"type:text"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

// TableName sets the database table name.
func (EventRecord) TableName() string { return "payment_events" }

// Reconciliation error codes stored for the operations queue.
const (
	ReconcileCodeUnknownReference = "unknown_reference"
	ReconcileCodeAmountMismatch   = "amount_mismatch"
	ReconcileCodeCurrencyMismatch = "currency_mismatch"
	ReconcileCodeAlreadyFinalized = "already_finalized"
	ReconcileCodeTransferFailed   = "transfer_failed"
)

// ReconciliationError records an event the state machine could not
// apply cleanly. Rows are append-only and reviewed by operations.
type ReconciliationError struct {
	ID              snowflake.ID  `json:"id" gorm:"primaryKey"`
	PaymentIntentID *snowflake.ID `json:"payment_intent_id,omitempty" gorm:"index"`
	Reference       string        `json:"reference" gorm:"type:text;index"`
	Code            string        `json:"code" gorm:"type:text;not null"`
	Detail          string        `json:"detail" gorm:"type:text"`
	Provider        string        `json:"provider" gorm:"type:text"`
	ProviderEventID string        `json:"provider_event_id" gorm:"type:text"`
	CreatedAt       time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ReconciliationError) TableName() string { return "reconciliation_errors" }

// PaymentReminder marks that a reminder went out for an intent at a
// given days-before threshold. The unique index is the dedup guard:
// the scheduler inserts the mark before dispatching, so a crashed run
// drops a reminder instead of repeating one.
type PaymentReminder struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	PaymentIntentID snowflake.ID `json:"payment_intent_id" gorm:"not null;uniqueIndex:ux_payment_reminders_intent_days"`
	DaysBefore      int          `json:"days_before" gorm:"not null;uniqueIndex:ux_payment_reminders_intent_days"`
	SentAt          time.Time    `json:"sent_at" gorm:"not null"`
}

// TableName sets the database table name.
func (PaymentReminder) TableName() string { return "payment_reminders" }

// ReminderCandidate is a pending intent approaching its due date,
// joined with the contact fields a reminder message needs.
type ReminderCandidate struct {
	IntentID    snowflake.ID `json:"intent_id"`
	Reference   string       `json:"reference"`
	SchoolID    snowflake.ID `json:"school_id"`
	StudentID   snowflake.ID `json:"student_id"`
	AmountDue   int64        `json:"amount_due"`
	Currency    string       `json:"currency"`
	DueAt       time.Time    `json:"due_at"`
	ParentEmail string       `json:"parent_email"`
	StudentName string       `json:"student_name"`
	SchoolName  string       `json:"school_name"`
}

// Canonical event types emitted by gateway adapters.
const (
	EventTypeChargeSucceeded   = "charge_succeeded"
	EventTypeChargeFailed      = "charge_failed"
	EventTypeTransferSucceeded = "transfer_succeeded"
	EventTypeTransferFailed    = "transfer_failed"
)

// PaymentEvent is the canonical gateway event parsed by adapters.
// Amount and Fees are minor units (kobo).
type PaymentEvent struct {
	Provider        string
	ProviderEventID string
	Type            string
	Reference       string
	Amount          int64
	Fees            int64
	Currency        string
	Channel         string
	GatewayStatus   string
	OccurredAt      time.Time
	RawPayload      []byte
}
