package user

import (
	"clipper/api/internal"
	"clipper/api/internal/model"
	"clipper/api/pkg/middleware"
	"clipper/api/pkg/security"
	"clipper/api/validators"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func UserLogin(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data loginBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	email, err := validators.NormalizeEmail(data.Email)
	if err != nil || data.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     "Email and password are required",
			"requestID": requestID,
		})
		return
	}

	invalid := gin.H{
		"success":   false,
		"error":     "Invalid credentials",
		"requestID": requestID,
	}

	var user model.User
	if err := d.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, invalid)
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to query user", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	ok, err := d.Argon.Verify(data.Password, user.PasswordHash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to verify password", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if !ok {
		c.JSON(http.StatusUnauthorized, invalid)
		return
	}

	ttl := viper.GetDuration("jwt.ttl")

	token, err := security.IssueToken([]byte(viper.GetString("jwt.secret")), user.ID, ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to generate JWT auth token", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	secure := viper.GetBool("host.ssl")

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookie, token, int(ttl.Seconds()), "/", "", secure, true)
	c.SetCookie("logged_in", "1", int(ttl.Seconds()), "/", "", secure, false)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"userID":  user.ID,
	})
}
