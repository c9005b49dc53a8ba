package server

import (
	"errors"
	"net/http"
	"strings"

	subscriptiondomain "github.com/edusuite/billing/internal/subscription/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.subscriptionSvc.Plans(c.Request.Context())})
}

func (s *Server) StartSubscription(c *gin.Context) {
	var req subscriptiondomain.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.SchoolID = c.Param("id")

	resp, err := s.subscriptionSvc.Start(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSubscription(c *gin.Context) {
	resp, err := s.subscriptionSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ActivateSubscription(c *gin.Context) {
	resp, err := s.subscriptionSvc.Activate(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type changePlanRequest struct {
	PlanCode string `json:"plan_code"`
}

func (s *Server) ChangeSubscriptionPlan(c *gin.Context) {
	var req changePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.PlanCode) == "" {
		AbortWithError(c, newValidationError("plan_code", "invalid_plan_code", "plan_code is required"))
		return
	}

	resp, err := s.subscriptionSvc.ChangePlan(c.Request.Context(), c.Param("id"), req.PlanCode)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	resp, err := s.subscriptionSvc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetEntitlement reports what the school's current subscription allows.
// Other services call this before admitting new students or staff.
func (s *Server) GetEntitlement(c *gin.Context) {
	resp, err := s.subscriptionSvc.Entitlement(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isSubscriptionValidationError(err error) bool {
	switch {
	case errors.Is(err, subscriptiondomain.ErrInvalidBillingPeriod),
		errors.Is(err, subscriptiondomain.ErrInvalidTrialDays):
		return true
	default:
		return false
	}
}
