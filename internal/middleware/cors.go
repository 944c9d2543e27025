package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS allows the configured origins, or every origin when the
// allowlist is empty.
func CORS(allowlist []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, origin := range allowlist {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}
	allowAll := len(allowed) == 0
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			writeCORSHeaders(c, "*")
		case origin != "":
			if _, ok := allowed[origin]; ok {
				writeCORSHeaders(c, origin)
				c.Writer.Header().Set("Vary", "Origin")
			}
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func writeCORSHeaders(c *gin.Context, origin string) {
	header := c.Writer.Header()
	header.Set("Access-Control-Allow-Origin", origin)
	header.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-Id")
}
