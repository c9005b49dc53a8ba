package server

import (
	"net/http"
	"strings"
	"time"

	discountdomain "github.com/edusuite/billing/internal/discount/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) GetDiscountPolicy(c *gin.Context) {
	resp, err := s.discountSvc.PolicyFor(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetDiscountPolicy(c *gin.Context) {
	var req discountdomain.UpsertPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.discountSvc.SetPolicy(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type previewDiscountRequest struct {
	StudentID  string    `json:"student_id"`
	BaseAmount int64     `json:"base_amount"`
	ClosesAt   time.Time `json:"closes_at"`
}

// PreviewDiscount runs the school's policy against an arbitrary amount
// so bursars can sanity-check a configuration before students see it.
func (s *Server) PreviewDiscount(c *gin.Context) {
	var req previewDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.StudentID) == "" {
		AbortWithError(c, newValidationError("student_id", "invalid_student", "student_id is required"))
		return
	}
	if req.ClosesAt.IsZero() {
		AbortWithError(c, newValidationError("closes_at", "invalid_closes_at", "closes_at is required"))
		return
	}

	ctx := c.Request.Context()

	student, err := s.schoolSvc.GetStudent(ctx, c.Param("id"), req.StudentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.discountSvc.Preview(ctx, c.Param("id"), req.BaseAmount, student.BillingContext(), req.ClosesAt)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
