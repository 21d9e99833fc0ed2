package file

import (
	"clipper/api/internal"
	"clipper/api/internal/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileProcess is called by the client once its upload finished. Calling it
// again for the same file does nothing.
func FileProcess(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)
	fileID := c.Param("id")

	queued, err := service.TriggerProcessing(c.Request.Context(), d.DB, d.Events, fileID, userID)
	if err != nil {
		if errors.Is(err, service.ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success":   false,
				"error":     "File not found",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Failed to start processing, please try again",
			"requestID": requestID,
		})

		zap.L().Error("Failed to trigger processing", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"queued":  queued,
	})
}
