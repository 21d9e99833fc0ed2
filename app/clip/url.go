// Package clip contains the handlers for generated clips
package clip

import (
	"clipper/api/internal"
	"clipper/api/internal/model"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// signedURL returns a playback URL for key. URLs are cached for three
// quarters of their lifetime so a cached one is never handed out expired.
func signedURL(ctx context.Context, d *internal.Deps, key string) (string, error) {
	if d.URLCache != nil {
		if v, err := d.URLCache.Get(key); err == nil {
			return v.(string), nil
		} else if !errors.Is(err, ttlcache.ErrNotFound) {
			zap.L().Warn("Signed URL cache lookup failed", zap.Error(err))
		}
	}

	url, err := d.Storage.PresignGet(ctx, key)
	if err != nil {
		return "", err
	}

	if d.URLCache != nil {
		ttl := d.Storage.URLTTL() * 3 / 4
		if ttl > time.Second {
			d.URLCache.SetWithTTL(key, url, ttl)
		}
	}

	return url, nil
}

func ClipURL(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var clip model.Clip
	err := d.DB.
		Where("id = ? AND user_id = ?", c.Param("id"), userID).
		First(&clip).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success":   false,
				"error":     "Clip not found",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to query clip", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	url, err := signedURL(c.Request.Context(), d, clip.S3Key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Failed to sign clip URL",
			"requestID": requestID,
		})

		zap.L().Error("Failed to sign clip URL", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"url":     url,
	})
}
