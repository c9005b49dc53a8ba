package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/edusuite/billing/internal/ledger/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListLedgerBalances(c *gin.Context) {
	schoolID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || schoolID == 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	currency := strings.ToUpper(strings.TrimSpace(c.Query("currency")))
	if currency == "" {
		currency = s.billing.Get().CurrencyCode
	}

	resp, err := s.ledgerSvc.AccountBalances(c.Request.Context(), schoolID, currency)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListLedgerEntries(c *gin.Context) {
	schoolID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || schoolID == 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	limit, err := parseLimitQuery(c, 50)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.ledgerSvc.ListEntries(c.Request.Context(), schoolID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isLedgerValidationError(err error) bool {
	switch {
	case errors.Is(err, ledgerdomain.ErrInvalidSchool),
		errors.Is(err, ledgerdomain.ErrInvalidSourceType),
		errors.Is(err, ledgerdomain.ErrInvalidSourceID),
		errors.Is(err, ledgerdomain.ErrInvalidCurrency),
		errors.Is(err, ledgerdomain.ErrInvalidOccurredAt),
		errors.Is(err, ledgerdomain.ErrInvalidEntryLines),
		errors.Is(err, ledgerdomain.ErrInvalidAccount),
		errors.Is(err, ledgerdomain.ErrInvalidLineDirection),
		errors.Is(err, ledgerdomain.ErrInvalidLineAmount),
		errors.Is(err, ledgerdomain.ErrUnbalancedEntry):
		return true
	default:
		return false
	}
}
