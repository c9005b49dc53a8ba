package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterDevBillingRoutes adds development-only endpoints that fire
// scheduler jobs on demand instead of waiting for the run loop. They
// are not registered in production.
func (s *Server) RegisterDevBillingRoutes() {
	if s.cfg.Environment == "production" {
		return
	}

	dev := s.engine.Group("/dev/billing")

	dev.POST("/scheduler/run-once", s.DevRunSchedulerOnce)
	dev.POST("/scheduler/overdue-sweep", s.DevRunOverdueSweep)
	dev.POST("/scheduler/payment-reminders", s.DevRunPaymentReminders)
	dev.POST("/scheduler/subscription-expiry", s.DevRunSubscriptionExpiry)
}

func (s *Server) DevRunSchedulerOnce(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	if err := s.scheduler.RunOnce(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "scheduler pass completed"})
}

func (s *Server) DevRunOverdueSweep(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	if err := s.scheduler.OverdueSweepJob(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "overdue sweep completed"})
}

func (s *Server) DevRunPaymentReminders(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	if err := s.scheduler.PaymentRemindersJob(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "payment reminders dispatched"})
}

func (s *Server) DevRunSubscriptionExpiry(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	if err := s.scheduler.SubscriptionExpiryJob(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "subscription expiry sweep completed"})
}
