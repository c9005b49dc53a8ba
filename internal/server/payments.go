package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	paymentdomain "github.com/edusuite/billing/internal/payment/domain"
	paymentservice "github.com/edusuite/billing/internal/payment/service"
	"github.com/edusuite/billing/internal/providers/pdf"
	"github.com/gin-gonic/gin"
)

func (s *Server) CreatePaymentIntent(c *gin.Context) {
	var req paymentservice.CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.CreateIntent(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPaymentIntents(c *gin.Context) {
	limit, err := parseLimitQuery(c, 50)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.ListIntents(c.Request.Context(), paymentservice.ListIntentsRequest{
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

func (s *Server) GetPaymentIntent(c *gin.Context) {
	resp, err := s.paymentSvc.GetIntent(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// DownloadReceiptPDF renders the printable receipt for an intent that
// has received money.
func (s *Server) DownloadReceiptPDF(c *gin.Context) {
	ctx := c.Request.Context()

	intent, err := s.paymentSvc.GetIntent(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if intent.AmountReceived <= 0 {
		AbortWithError(c, ErrConflict)
		return
	}

	school, err := s.schoolSvc.GetByID(ctx, intent.SchoolID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	student, err := s.schoolSvc.GetStudent(ctx, intent.SchoolID.String(), intent.StudentID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.pdfSvc.GenerateReceipt(ctx, pdf.ReceiptData{
		SchoolName:  school.Name,
		SchoolEmail: school.ContactEmail,
		Reference:   intent.Reference,
		Purpose:     intent.Purpose,
		StudentName: student.FullName,
		ClassLevel:  student.ClassLevel,
		ParentEmail: student.ParentEmail,
		AmountPaid:  formatAmount(intent.AmountReceived, intent.Currency),
		DatePaid:    formatDateLabel(intent.PaidAt),
		Channel:     intent.Channel,
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

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", intent.Reference+"-receipt.pdf"))
	c.Data(http.StatusOK, "application/pdf", buf)
}

func (s *Server) ListReconciliationErrors(c *gin.Context) {
	limit, err := parseLimitQuery(c, 50)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.ListReconciliationErrors(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ListBanks serves the gateway's bank directory from a short cache so
// onboarding screens can poll it freely.
func (s *Server) ListBanks(c *gin.Context) {
	currency := strings.ToUpper(strings.TrimSpace(c.Query("currency")))
	if currency == "" {
		currency = "NGN"
	}

	if banks, ok := s.banksCache.Get(currency); ok {
		c.JSON(http.StatusOK, gin.H{"data": banks})
		return
	}

	if s.gateway == nil {
		AbortWithError(c, paymentdomain.ErrGatewayNotConfigured)
		return
	}

	banks, err := s.gateway.ListBanks(c.Request.Context(), currency)
	if err != nil {
		AbortWithError(c, mapGatewayError(err))
		return
	}
	s.banksCache.Set(currency, banks)

	c.JSON(http.StatusOK, gin.H{"data": banks})
}

func isPaymentValidationError(err error) bool {
	switch {
	case errors.Is(err, paymentdomain.ErrInvalidIntent),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidCurrency),
		errors.Is(err, paymentdomain.ErrInvalidProvider),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent):
		return true
	default:
		return false
	}
}
