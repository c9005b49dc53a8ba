package service

import (
	"context"

	"github.com/edusuite/billing/internal/invoice/domain"
	"github.com/edusuite/billing/internal/invoice/render"
)

// RenderHTML builds the parent-facing HTML view of an invoice. School
// and student lookups are best effort: a bill with a thin letterhead
// beats no bill.
func (s *service) RenderHTML(ctx context.Context, number string) (string, error) {
	detail, err := s.GetByNumber(ctx, number)
	if err != nil {
		return "", err
	}

	input := render.RenderInput{
		Invoice: buildInvoiceView(detail.Invoice),
		Items:   buildLineViews(detail.Items),
	}
	if school, err := s.schools.GetByID(ctx, detail.Invoice.SchoolID.String()); err == nil {
		input.School = render.SchoolView{
			Name:         school.Name,
			ContactEmail: school.ContactEmail,
		}
	}
	if student, err := s.schools.GetStudent(ctx, detail.Invoice.SchoolID.String(), detail.Invoice.StudentID.String()); err == nil {
		input.Student = render.StudentView{
			FullName:    student.FullName,
			ClassLevel:  student.ClassLevel,
			ParentEmail: student.ParentEmail,
		}
	}
	return s.renderer.RenderHTML(input)
}

func buildInvoiceView(inv domain.Invoice) render.InvoiceView {
	return render.InvoiceView{
		Number:         inv.InvoiceNumber,
		Status:         string(inv.Status),
		Currency:       inv.Currency,
		GrossAmount:    inv.GrossAmount,
		DiscountAmount: inv.DiscountAmount,
		TotalAmount:    inv.TotalAmount,
		AmountPaid:     inv.AmountPaid,
		BalanceDue:     inv.Outstanding(),
		IssuedAt:       inv.CreatedAt,
		DueAt:          inv.DueAt,
	}
}

func buildLineViews(items []domain.InvoiceItem) []render.LineView {
	views := make([]render.LineView, 0, len(items))
	for _, item := range items {
		views = append(views, render.LineView{
			Category: item.Category,
			Amount:   item.Amount,
		})
	}
	return views
}
