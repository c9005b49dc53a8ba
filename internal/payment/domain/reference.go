package domain

import "github.com/oklog/ulid/v2"

// NewPrefixedReference mints a gateway reference in a caller-chosen
// series. Billing settings map each document type to its own prefix so
// bank statements group by series. ULIDs keep references sortable by
// creation time, which helps when eyeballing gateway dashboards against
// our own records.
func NewPrefixedReference(prefix string) string {
	return prefix + "-" + ulid.Make().String()
}

// NewReference mints a reference outside any document series, for
// intents opened directly rather than from an invoice.
func NewReference() string {
	return NewPrefixedReference("PAY")
}

// NewWaiverReference marks settlements that cleared without any money
// movement (fully waived invoices).
func NewWaiverReference() string {
	return "WAIVER-" + ulid.Make().String()
}
