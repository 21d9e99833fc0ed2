package user

import (
	"clipper/api/internal"
	"clipper/api/internal/model"
	"clipper/api/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserFetch returns everything the dashboard shows: the balance, the files
// sent for processing and the clips cut from them
func UserFetch(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)
	ctx := c.Request.Context()

	var user model.User
	err := d.DB.WithContext(ctx).
		Select("id", "email", "credits").
		Where("id = ?", userID).
		First(&user).
		Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch user", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	files, err := service.ListFiles(ctx, d.DB, userID, service.FileQuery{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch uploaded files", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	clips, err := service.ListClips(ctx, d.DB, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch clips", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"email":   user.Email,
		"credits": user.Credits,
		"files":   files,
		"clips":   clips,
	})
}
