// Package response holds router-level fallbacks. The generation endpoints
// answer in their own wire shapes, so only the shared envelope responses
// live here.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MethodNotAllowed sends a 405 error response.
func MethodNotAllowed(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"ok": 0, "code": http.StatusMethodNotAllowed, "message": "Method not allowed"})
}

// UpgradeRequired sends a 426 response for endpoints that need a protocol upgrade.
func UpgradeRequired(c *gin.Context, message string) {
	c.String(http.StatusUpgradeRequired, message)
	c.Abort()
}
