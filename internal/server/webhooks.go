package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	obsmetrics "github.com/edusuite/billing/internal/observability/metrics"
	paymentdomain "github.com/edusuite/billing/internal/payment/domain"
	"github.com/gin-gonic/gin"
)

// HandlePaymentWebhook ingests a gateway delivery. The response code
// steers the gateway's retry loop: 2xx stops redelivery, 4xx flags a
// delivery we will never accept, 5xx asks for another attempt.
//
// Decided outcomes (replays, finalized intents, unmatched or
// mismatched references) are acknowledged with 200 even though they
// did not move money; the service has already recorded them for
// operator review and redelivering the same event cannot change the
// outcome.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := strings.ToLower(strings.TrimSpace(c.Param("provider")))

	if s.webhookLimiter.Enabled() {
		allowed, err := s.webhookLimiter.Allow(c.Request.Context(), provider, c.ClientIP())
		if err != nil {
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !allowed {
			AbortWithError(c, ErrRateLimited)
			return
		}
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err = s.webhookSvc.IngestWebhook(c.Request.Context(), provider, payload, c.Request.Header)
	if err != nil {
		recordIngestFailure(err)

		if isDecidedWebhookOutcome(err) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// isDecidedWebhookOutcome reports errors that must be acknowledged:
// the event was consumed and recorded, it just didn't apply cleanly.
func isDecidedWebhookOutcome(err error) bool {
	return errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) ||
		errors.Is(err, paymentdomain.ErrAlreadyFinalized) ||
		errors.Is(err, paymentdomain.ErrUnknownReference) ||
		errors.Is(err, paymentdomain.ErrAmountMismatch)
}

func recordIngestFailure(err error) {
	obsmetrics.Scheduler().IncReconcileError(ingestFailureStage(err), err)
}

// ingestFailureStage buckets an ingest error by the pipeline stage
// that rejected it.
func ingestFailureStage(err error) string {
	switch {
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return obsmetrics.ReconcileStageVerify
	case errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent),
		errors.Is(err, paymentdomain.ErrInvalidProvider),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidCurrency):
		return obsmetrics.ReconcileStageParse
	default:
		return obsmetrics.ReconcileStageTransition
	}
}
