package billing

import (
	"clipper/api/internal"
	"clipper/api/internal/billing"
	"clipper/api/pkg/middleware"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const signatureHeader = "Stripe-Signature"

// StripeWebhook applies payment events. Anything but a bad signature or an
// internal failure is answered with 200 so Stripe stops redelivering it.
func StripeWebhook(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		code := http.StatusBadRequest
		if middleware.IsBodyTooLarge(err) {
			code = http.StatusRequestEntityTooLarge
		}

		c.JSON(code, gin.H{
			"success":   false,
			"error":     "Failed to read request body",
			"requestID": requestID,
		})
		return
	}

	ev, err := billing.VerifyWebhook(payload, c.GetHeader(signatureHeader), viper.GetString("stripe.webhook_secret"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     "Invalid signature",
			"requestID": requestID,
		})

		zap.L().Warn("Rejected webhook with invalid signature", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	res, err := billing.ApplyEvent(c.Request.Context(), d.DB, d.Payments, ev)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to apply webhook event", zap.Error(err), zap.String("event_id", ev.ID), zap.String("requestID", requestID))
		return
	}

	if res.CreditsAdded > 0 {
		zap.L().Info("Credits purchased",
			zap.String("event_id", ev.ID),
			zap.String("user_id", res.UserID),
			zap.Int("credits", res.CreditsAdded))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"duplicate": res.Duplicate,
	})
}
