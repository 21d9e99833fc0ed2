// Package user contains the account handlers
package user

import (
	"clipper/api/internal"
	"clipper/api/internal/model"
	"clipper/api/pkg/util"
	"clipper/api/validators"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type registerBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func UserRegister(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data registerBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	email, err := validators.NormalizeEmail(data.Email)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	if err := validators.PasswordValidator(data.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	var count int64
	err = d.DB.
		Model(&model.User{}).
		Where("email = ?", email).
		Count(&count).
		Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to check if user is registered", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{
			"success":   false,
			"error":     "This email is already registered. Please login or use a different email",
			"requestID": requestID,
		})
		return
	}

	hash, err := d.Argon.Hash(data.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to hash password", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	customerID, err := d.Payments.CreateCustomer(c.Request.Context(), email)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success":   false,
			"error":     "Failed to create account, please try again later",
			"requestID": requestID,
		})

		zap.L().Error("Failed to create payment customer", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	user := model.User{
		ID:               util.NewID(),
		Email:            email,
		PasswordHash:     hash,
		Credits:          viper.GetInt("credits.signup_bonus"),
		StripeCustomerID: &customerID,
	}

	if err := d.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{
				"success":   false,
				"error":     "This email is already registered. Please login or use a different email",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to create user", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if d.Mailer.Enabled() {
		go func() {
			if err := d.Mailer.SendWelcome(user.Email, user.Credits); err != nil {
				zap.L().Warn("Failed to send welcome mail", zap.Error(err), zap.String("user_id", user.ID))
			}
		}()
	}

	zap.L().Info("User registered", zap.String("user_id", user.ID), zap.String("requestID", requestID))

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"userID":  user.ID,
		"credits": user.Credits,
	})
}
