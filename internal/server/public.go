package server

import (
	"errors"
	"net/http"
	"strings"

	invoicedomain "github.com/edusuite/billing/internal/invoice/domain"
	"github.com/gin-gonic/gin"
)

// The /public group serves parents who follow an invoice link from an
// email. No session exists; the invoice number is the capability and
// per-IP limiters damp enumeration.

func (s *Server) ViewPublicInvoice(c *gin.Context) {
	number := strings.TrimSpace(c.Param("number"))
	if number == "" {
		s.respondPublicInvoiceUnavailable(c)
		return
	}
	if !s.publicInvoiceLimiter.Allow(publicResourceRateKey(number, c.ClientIP())) {
		AbortWithError(c, ErrRateLimited)
		return
	}

	html, err := s.invoiceSvc.RenderHTML(c.Request.Context(), number)
	if err != nil {
		s.handlePublicInvoiceError(c, err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (s *Server) GetPublicInvoiceStatus(c *gin.Context) {
	number := strings.TrimSpace(c.Param("number"))
	if number == "" {
		s.respondPublicInvoiceUnavailable(c)
		return
	}
	if !s.publicStatusLimiter.Allow(publicResourceRateKey(number, c.ClientIP())) {
		AbortWithError(c, ErrRateLimited)
		return
	}

	det, err := s.invoiceSvc.GetByNumber(c.Request.Context(), number)
	if err != nil {
		s.handlePublicInvoiceError(c, err)
		return
	}

	inv := det.Invoice
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"invoice_number": inv.InvoiceNumber,
		"status":         inv.Status,
		"currency":       inv.Currency,
		"total_amount":   inv.TotalAmount,
		"amount_paid":    inv.AmountPaid,
		"balance_due":    inv.Outstanding(),
		"due_at":         inv.DueAt,
	}})
}

type publicCheckoutRequest struct {
	Email string `json:"email"`
}

// StartPublicCheckout opens a gateway checkout session for an intent
// reference. The payer email is optional; the student's parent email
// is used when absent.
func (s *Server) StartPublicCheckout(c *gin.Context) {
	reference := strings.TrimSpace(c.Param("reference"))
	if reference == "" {
		AbortWithError(c, invalidRequestError())
		return
	}
	if !s.publicCheckoutLimiter.Allow(publicResourceRateKey(reference, c.ClientIP())) {
		AbortWithError(c, ErrRateLimited)
		return
	}

	var req publicCheckoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.paymentSvc.InitializeCheckout(c.Request.Context(), reference, req.Email)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) handlePublicInvoiceError(c *gin.Context, err error) {
	if errors.Is(err, invoicedomain.ErrInvoiceNotFound) || errors.Is(err, invoicedomain.ErrInvalidInvoice) {
		s.respondPublicInvoiceUnavailable(c)
		return
	}
	AbortWithError(c, err)
}

func (s *Server) respondPublicInvoiceUnavailable(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: errorPayload{
		Type:    "invoice_unavailable",
		Message: "this invoice is not available",
	}})
}

func publicResourceRateKey(resource string, ip string) string {
	if resource == "" {
		return ""
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	return resource + ":" + ip
}
