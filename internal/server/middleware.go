package server

import (
	"github.com/gin-gonic/gin"
)

// NoStore keeps proxies and browsers from caching public billing
// pages. Invoice views carry student names and balances behind a
// guessable-looking URL, so nothing on /public may be stored.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		c.Next()
	}
}
