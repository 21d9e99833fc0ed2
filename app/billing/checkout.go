package billing

import (
	"clipper/api/internal"
	"clipper/api/internal/billing"
	"clipper/api/internal/model"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type checkoutBody struct {
	Pack string `json:"pack"`
}

func Checkout(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)
	ctx := c.Request.Context()

	var data checkoutBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	pack, err := billing.FindPack(data.Pack)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	var user model.User
	if err := d.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch user", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	paymentFailed := gin.H{
		"success":   false,
		"error":     "Failed to start checkout, please try again later",
		"requestID": requestID,
	}

	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		customerID, err := d.Payments.CreateCustomer(ctx, user.Email)
		if err != nil {
			c.JSON(http.StatusBadGateway, paymentFailed)
			zap.L().Error("Failed to create payment customer", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		err = d.DB.
			Model(&model.User{}).
			Where("id = ?", user.ID).
			Update("stripe_customer_id", customerID).
			Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success":   false,
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to save payment customer", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		user.StripeCustomerID = &customerID
	}

	url, err := d.Payments.CreateCheckoutSession(ctx, *user.StripeCustomerID, pack.PriceID)
	if err != nil || url == "" {
		if err == nil {
			err = errors.New("checkout session has no URL")
		}

		c.JSON(http.StatusBadGateway, paymentFailed)
		zap.L().Error("Failed to create checkout session", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"url":     url,
	})
}
