package clip

import (
	"clipper/api/internal"
	"clipper/api/internal/model"
	"clipper/api/internal/service"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"
)

type signedClip struct {
	model.Clip
	URL string `json:"url"`
}

// ClipList returns the user's clips. With ?signed=1 every clip carries a
// playback URL
func ClipList(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)
	ctx := c.Request.Context()

	clips, err := service.ListClips(ctx, d.DB, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to list clips", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if signed, _ := strconv.ParseBool(c.Query("signed")); !signed {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"clips":   clips,
		})
		return
	}

	mapper := iter.Mapper[model.Clip, signedClip]{MaxGoroutines: 8}

	withURLs, err := mapper.MapErr(clips, func(clip *model.Clip) (signedClip, error) {
		url, err := signedURL(ctx, d, clip.S3Key)
		return signedClip{Clip: *clip, URL: url}, err
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Failed to sign clip URLs",
			"requestID": requestID,
		})

		zap.L().Error("Failed to sign clip URLs", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"clips":   withURLs,
	})
}
