// Package root contains the handlers that don't belong to any resource
package root

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HEAD /api/heartbeat
func Heartbeat(c *gin.Context) {
	c.Status(http.StatusOK)
}

// Validate only runs after the JWT middleware accepted the request
func Validate(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"userID":  c.MustGet("userID").(string),
	})
}
