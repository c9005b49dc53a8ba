package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func parseOptionalInt64(value string) (*int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseLimitQuery reads ?limit= with a default. Services clamp the
// upper bound themselves.
func parseLimitQuery(c *gin.Context, def int) (int, error) {
	parsed, err := parseOptionalInt64(c.Query("limit"))
	if err != nil {
		return 0, newValidationError("limit", "invalid_limit", "limit must be an integer")
	}
	if parsed == nil {
		return def, nil
	}
	if *parsed < 0 {
		return 0, newValidationError("limit", "invalid_limit", "limit cannot be negative")
	}
	return int(*parsed), nil
}
