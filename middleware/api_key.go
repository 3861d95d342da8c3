package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"medical-rag-platform/utils"
)

const APIKeyHeader = "X-API-Key"

// APIKeyMiddleware requires the X-API-Key header to match the configured
// server key. A server without a key rejects every request.
func APIKeyMiddleware(serverKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if serverKey == "" {
			utils.RespondWithInternalError(c, "Server API key is not configured", nil)
			return
		}

		key := c.GetHeader(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(key), []byte(serverKey)) != 1 {
			utils.RespondWithUnauthorized(c, "Invalid API key")
			return
		}

		c.Next()
	}
}
