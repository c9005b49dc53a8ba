package domain

import "errors"

var (
	ErrInvalidInvoice  = errors.New("invalid_invoice")
	ErrInvoiceNotFound = errors.New("invoice_not_found")
	ErrInvoiceClosed   = errors.New("invoice_closed")
	ErrNoBillableLines = errors.New("no_billable_lines")
)
