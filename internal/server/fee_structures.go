package server

import (
	"errors"
	"net/http"
	"strings"

	feescheduledomain "github.com/edusuite/billing/internal/feeschedule/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) CreateFeeStructure(c *gin.Context) {
	var req feescheduledomain.CreateStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.feeSvc.CreateStructure(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetFeeStructure(c *gin.Context) {
	resp, err := s.feeSvc.GetStructure(c.Request.Context(), c.Param("id"), c.Param("key"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// QuoteFees prices a structure for one student without writing
// anything: resolved fee lines plus the discount breakdown the policy
// would apply if the invoice were issued now.
func (s *Server) QuoteFees(c *gin.Context) {
	studentID := strings.TrimSpace(c.Query("student_id"))
	if studentID == "" {
		AbortWithError(c, newValidationError("student_id", "invalid_student", "student_id is required"))
		return
	}

	ctx := c.Request.Context()
	schoolID := c.Param("id")
	key := c.Param("key")

	structure, err := s.feeSvc.GetStructure(ctx, schoolID, key)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	student, err := s.schoolSvc.GetStudent(ctx, schoolID, studentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	lines, err := s.feeSvc.Resolve(ctx, schoolID, key, student.BillingContext())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var gross int64
	for _, line := range lines {
		gross += line.Amount
	}

	breakdown, err := s.discountSvc.Preview(ctx, schoolID, gross, student.BillingContext(), structure.DueAt)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"structure_key": structure.Key,
		"currency":      structure.Currency,
		"due_at":        structure.DueAt,
		"lines":         lines,
		"gross_amount":  gross,
		"discount":      breakdown,
		"payable":       breakdown.Payable,
	}})
}

func isFeeScheduleValidationError(err error) bool {
	switch {
	case errors.Is(err, feescheduledomain.ErrInvalidStructure),
		errors.Is(err, feescheduledomain.ErrInvalidKey),
		errors.Is(err, feescheduledomain.ErrInvalidItem):
		return true
	default:
		return false
	}
}
