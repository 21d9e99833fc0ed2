// Package middleware contains the custom gin middleware used by the API
package middleware

import (
	"clipper/api/pkg/util"

	"github.com/gin-gonic/gin"
)

const RequestIDHeader = "X-Request-ID"

// NewRequestIDMiddleware gives every request an ID, stored as requestID in
// the context and echoed in the X-Request-ID response header
func NewRequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := util.NewID()

		c.Set("requestID", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
