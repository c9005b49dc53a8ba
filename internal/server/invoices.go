package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	invoicedomain "github.com/edusuite/billing/internal/invoice/domain"
	"github.com/edusuite/billing/internal/providers/pdf"
	"github.com/edusuite/billing/pkg/money"
	"github.com/gin-gonic/gin"
)

func (s *Server) IssueInvoice(c *gin.Context) {
	var req invoicedomain.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.Issue(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) IssueInvoiceFromFees(c *gin.Context) {
	var req invoicedomain.IssueFromFeesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.IssueFromFees(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListInvoices(c *gin.Context) {
	limit, err := parseLimitQuery(c, 50)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListRequest{
		SchoolID:  strings.TrimSpace(c.Query("school_id")),
		StudentID: strings.TrimSpace(c.Query("student_id")),
		Status:    strings.TrimSpace(c.Query("status")),
		Limit:     limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetInvoice(c *gin.Context) {
	resp, err := s.invoiceSvc.Get(c.Request.Context(), c.Param("id"), c.Param("invoice_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SendInvoice(c *gin.Context) {
	resp, err := s.invoiceSvc.Send(c.Request.Context(), c.Param("id"), c.Param("invoice_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelInvoice(c *gin.Context) {
	resp, err := s.invoiceSvc.Cancel(c.Request.Context(), c.Param("id"), c.Param("invoice_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// DownloadInvoicePDF renders the printable invoice. The layout feeds
// on preformatted strings so the document never does money math.
func (s *Server) DownloadInvoicePDF(c *gin.Context) {
	ctx := c.Request.Context()

	det, err := s.invoiceSvc.Get(ctx, c.Param("id"), c.Param("invoice_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	school, err := s.schoolSvc.GetByID(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	student, err := s.schoolSvc.GetStudent(ctx, c.Param("id"), det.Invoice.StudentID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	inv := det.Invoice
	items := make([]pdf.FeeLine, 0, len(det.Items))
	for _, item := range det.Items {
		items = append(items, pdf.FeeLine{
			Category: item.Category,
			Amount:   formatAmount(item.Amount, inv.Currency),
		})
	}

	doc, err := s.pdfSvc.GenerateInvoice(ctx, pdf.InvoiceData{
		SchoolName:  school.Name,
		SchoolEmail: school.ContactEmail,
		SchoolCode:  school.Code,
		Number:      inv.InvoiceNumber,
		Status:      strings.ReplaceAll(string(inv.Status), "_", " "),
		IssueDate:   formatDateLabel(&inv.CreatedAt),
		DueDate:     formatDateLabel(inv.DueAt),
		StudentName: student.FullName,
		ClassLevel:  student.ClassLevel,
		ParentEmail: student.ParentEmail,
		Items:       items,
		Subtotal:    formatAmount(inv.GrossAmount, inv.Currency),
		Discount:    formatAmount(inv.DiscountAmount, inv.Currency),
		Total:       formatAmount(inv.TotalAmount, inv.Currency),
		AmountPaid:  formatAmount(inv.AmountPaid, inv.Currency),
		BalanceDue:  formatAmount(inv.Outstanding(), inv.Currency),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	buf, err := io.ReadAll(doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", inv.InvoiceNumber+".pdf"))
	c.Data(http.StatusOK, "application/pdf", buf)
}

func formatAmount(amount int64, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" || currency == "NGN" {
		return money.FormatNaira(amount)
	}
	return fmt.Sprintf("%s %.2f", currency, float64(amount)/100.0)
}

func formatDateLabel(value *time.Time) string {
	if value == nil || value.IsZero() {
		return "-"
	}
	return value.UTC().Format("2 January 2006")
}

func isInvoiceValidationError(err error) bool {
	switch {
	case errors.Is(err, invoicedomain.ErrInvalidInvoice),
		errors.Is(err, invoicedomain.ErrNoBillableLines):
		return true
	default:
		return false
	}
}
