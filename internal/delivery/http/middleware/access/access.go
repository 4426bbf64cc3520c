package http_access_middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/humanbelnik/kinomatch/internal/config"
)

// ReadOnlyBadGatewayMiddleware lets only reads through on a read-only
// replica. Websocket upgrades are GETs and pass.
func ReadOnlyBadGatewayMiddleware(mode string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if mode != config.ModeReadOnly {
			c.Next()
			return
		}

		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Bad Gateway",
			"message": "Write operations not allowed on read-only instance",
			"code":    "READ_ONLY_INSTANCE",
		})
		c.Abort()
	}
}
