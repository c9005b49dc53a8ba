package server

import (
	"errors"
	"net/http"
	"strings"

	gwpaystack "github.com/edusuite/billing/internal/gateway/paystack"
	paymentdomain "github.com/edusuite/billing/internal/payment/domain"
	schooldomain "github.com/edusuite/billing/internal/school/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) CreateSchool(c *gin.Context) {
	var req schooldomain.CreateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.schoolSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSchools(c *gin.Context) {
	resp, err := s.schoolSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSchool(c *gin.Context) {
	resp, err := s.schoolSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type provisionSubaccountRequest struct {
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
}

// ProvisionSubaccount verifies the school's bank account with the
// gateway, creates the settlement subaccount and stores the result.
// Verification happens before creation so a typo in the account number
// fails the request instead of provisioning a dead subaccount.
func (s *Server) ProvisionSubaccount(c *gin.Context) {
	var req provisionSubaccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.BankCode = strings.TrimSpace(req.BankCode)
	req.AccountNumber = strings.TrimSpace(req.AccountNumber)
	if req.BankCode == "" || req.AccountNumber == "" {
		AbortWithError(c, newValidationError("bank_code", "invalid_bank", "bank code and account number are required"))
		return
	}
	if s.gateway == nil {
		AbortWithError(c, paymentdomain.ErrGatewayNotConfigured)
		return
	}

	ctx := c.Request.Context()

	school, err := s.schoolSvc.GetByID(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resolved, err := s.gateway.ResolveAccount(ctx, req.AccountNumber, req.BankCode)
	if err != nil {
		AbortWithError(c, mapGatewayError(err))
		return
	}

	sub, err := s.gateway.CreateSubaccount(ctx, gwpaystack.SubaccountRequest{
		BusinessName:     school.Name,
		BankCode:         req.BankCode,
		AccountNumber:    req.AccountNumber,
		PercentageCharge: s.billing.Get().PlatformFeePercent * 100,
	})
	if err != nil {
		AbortWithError(c, mapGatewayError(err))
		return
	}

	resp, err := s.schoolSvc.AttachSubaccount(ctx, c.Param("id"), schooldomain.SubaccountDetails{
		SubaccountCode: sub.SubaccountCode,
		BankCode:       req.BankCode,
		AccountNumber:  req.AccountNumber,
		AccountName:    resolved.AccountName,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RegisterStudent(c *gin.Context) {
	var req schooldomain.RegisterStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.schoolSvc.RegisterStudent(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetStudent(c *gin.Context) {
	resp, err := s.schoolSvc.GetStudent(c.Request.Context(), c.Param("id"), c.Param("student_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isSchoolValidationError(err error) bool {
	switch {
	case errors.Is(err, schooldomain.ErrInvalidName),
		errors.Is(err, schooldomain.ErrInvalidSchool),
		errors.Is(err, schooldomain.ErrInvalidBank),
		errors.Is(err, schooldomain.ErrInvalidStudent),
		errors.Is(err, schooldomain.ErrInvalidScholarship):
		return true
	default:
		return false
	}
}
