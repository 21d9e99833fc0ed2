// Package file contains the handlers for uploaded source files
package file

import (
	"clipper/api/internal"
	"clipper/api/internal/model"
	"clipper/api/pkg/util"
	"clipper/api/validators"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Name of the source object inside a file's prefix
const sourceObject = "original.mp4"

type uploadURLBody struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// FileUploadURL records a pending upload and returns a presigned PUT URL the
// client uploads the file to directly
func FileUploadURL(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var data uploadURLBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	if err := validators.UploadValidator(data.Filename, data.ContentType); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	id := util.NewID()
	key := id + "/" + sourceObject

	signedURL, err := d.Storage.PresignPut(c.Request.Context(), key, data.ContentType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Failed to prepare upload",
			"requestID": requestID,
		})

		zap.L().Error("Failed to presign upload", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	err = d.DB.Create(&model.UploadedFile{
		ID:          id,
		UserID:      userID,
		S3Key:       key,
		DisplayName: filepath.Base(data.Filename),
		Status:      model.StatusQueued,
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to create uploaded file", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"signedUrl":      signedURL,
		"key":            key,
		"uploadedFileId": id,
	})
}
