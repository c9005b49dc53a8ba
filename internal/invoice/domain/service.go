package domain

import (
	"context"
	"time"

	discountdomain "github.com/edusuite/billing/internal/discount/domain"
	paymentdomain "github.com/edusuite/billing/internal/payment/domain"
)

// IssueFromFeesRequest bills a student under a school's fee structure.
// The structure key names a term ("2025-t1") or an application type.
type IssueFromFeesRequest struct {
	SchoolID     string `json:"school_id"`
	StudentID    string `json:"student_id"`
	StructureKey string `json:"structure_key"`
}

// LineInput is one manually priced fee line.
type LineInput struct {
	Category string `json:"category"`
	Amount   int64  `json:"amount"`
}

// IssueRequest bills a student with caller-supplied lines, for fees
// that have no structure (admission letters, replacements, sundries).
type IssueRequest struct {
	SchoolID  string         `json:"school_id"`
	StudentID string         `json:"student_id"`
	Kind      Kind           `json:"kind"`
	Currency  string         `json:"currency"`
	DueAt     *time.Time     `json:"due_at"`
	Lines     []LineInput    `json:"lines"`
	Metadata  map[string]any `json:"metadata"`
}

type ListRequest struct {
	SchoolID  string `json:"school_id"`
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
	Limit     int    `json:"limit"`
}

// Issued pairs a created invoice with the payment intent opened for
// it. Intent is nil when the invoice was fully waived.
type Issued struct {
	Invoice  *Invoice                     `json:"invoice"`
	Items    []InvoiceItem                `json:"items"`
	Discount *discountdomain.Breakdown    `json:"discount,omitempty"`
	Intent   *paymentdomain.PaymentIntent `json:"intent,omitempty"`
}

// Detail is an invoice with its fee lines.
type Detail struct {
	Invoice Invoice       `json:"invoice"`
	Items   []InvoiceItem `json:"items"`
}

type Service interface {
	// IssueFromFees resolves the student's fee lines, applies the
	// school's discount policy and opens a payment intent for the
	// payable balance. A fully waived bill is issued directly paid.
	IssueFromFees(ctx context.Context, req IssueFromFeesRequest) (*Issued, error)
	Issue(ctx context.Context, req IssueRequest) (*Issued, error)
	Get(ctx context.Context, schoolID string, invoiceID string) (*Detail, error)
	GetByNumber(ctx context.Context, number string) (*Detail, error)
	List(ctx context.Context, req ListRequest) ([]Invoice, error)
	// Send moves a draft out the door and notifies the parent.
	// Sending an invoice that already left draft is a no-op.
	Send(ctx context.Context, schoolID string, invoiceID string) (*Invoice, error)
	// Cancel withdraws an unpaid invoice and fails its open intents.
	Cancel(ctx context.Context, schoolID string, invoiceID string) (*Invoice, error)
	// MarkOverdue flips sent invoices whose due date passed asOf.
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
	// RenderHTML produces the parent-facing HTML view of an invoice,
	// looked up by its public number.
	RenderHTML(ctx context.Context, number string) (string, error)
}
