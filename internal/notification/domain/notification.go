// Package domain defines the outbound notification surface. Dispatch
// is fire-and-forget: delivery failures are logged, never propagated
// into billing flows.
package domain

import (
	"context"
	"time"
)

// StateChange describes a payment intent moving between states.
type StateChange struct {
	Reference      string
	Purpose        string
	FromStatus     string
	ToStatus       string
	SchoolName     string
	StudentName    string
	ParentEmail    string
	AmountDue      int64
	AmountReceived int64
	Currency       string
	FailureReason  string
}

// Alert flags a reconciliation problem for the operations channel.
type Alert struct {
	Reference       string
	Provider        string
	ProviderEventID string
	Code            string
	Detail          string
}

// Reminder nudges a parent about an upcoming due date.
type Reminder struct {
	Reference   string
	ParentEmail string
	SchoolName  string
	StudentName string
	AmountDue   int64
	Currency    string
	DueAt       time.Time
	DaysBefore  int
}

// InvoiceNotice announces a freshly issued invoice to the parent.
type InvoiceNotice struct {
	InvoiceNumber string
	ParentEmail   string
	SchoolName    string
	StudentName   string
	TotalAmount   int64
	Currency      string
	DueAt         *time.Time
}

type Dispatcher interface {
	PaymentStateChanged(ctx context.Context, change StateChange)
	ReconcileAlert(ctx context.Context, alert Alert)
	PaymentReminder(ctx context.Context, reminder Reminder)
	InvoiceIssued(ctx context.Context, notice InvoiceNotice)
}
