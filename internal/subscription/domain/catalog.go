package domain

import "github.com/lib/pq"

// The catalog is compiled in: plans change with a release, not a row.
// Annual pricing is priced at 2.4x the term rate (three terms for the
// price of two and a bit).
var catalog = []Plan{
	{
		Code:        PlanBasic,
		Name:        "Basic",
		Description: "Fee invoicing and payment reconciliation for small schools.",
		TermPrice:   2_500_000,
		AnnualPrice: 6_000_000,
		MaxStudents: 300,
		MaxStaff:    30,
		StorageMB:   1_024,
		Features: pq.StringArray{
			"fee_invoicing",
			"payment_reconciliation",
			"bank_transfer_checkout",
		},
		Rank: 1,
	},
	{
		Code:        PlanStandard,
		Name:        "Standard",
		Description: "Discount engine, PDF documents and a branded subdomain.",
		TermPrice:   7_500_000,
		AnnualPrice: 18_000_000,
		MaxStudents: 1_500,
		MaxStaff:    150,
		StorageMB:   10_240,
		Features: pq.StringArray{
			"fee_invoicing",
			"payment_reconciliation",
			"bank_transfer_checkout",
			"discount_engine",
			"pdf_documents",
			"custom_subdomain",
		},
		Popular: true,
		Rank:    2,
	},
	{
		Code:        PlanPremium,
		Name:        "Premium",
		Description: "Full branding, API access and priority support for groups.",
		TermPrice:   15_000_000,
		AnnualPrice: 36_000_000,
		MaxStudents: 10_000,
		MaxStaff:    1_000,
		StorageMB:   51_200,
		Features: pq.StringArray{
			"fee_invoicing",
			"payment_reconciliation",
			"bank_transfer_checkout",
			"discount_engine",
			"pdf_documents",
			"custom_subdomain",
			"full_branding",
			"api_access",
			"priority_support",
		},
		Rank: 3,
	},
}

// Plans returns the catalog ordered by rank.
func Plans() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

// PlanByCode looks a plan up by its code.
func PlanByCode(code PlanCode) (Plan, bool) {
	for _, p := range catalog {
		if p.Code == code {
			return p, true
		}
	}
	return Plan{}, false
}
