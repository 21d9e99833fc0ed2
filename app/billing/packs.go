// Package billing contains the credit purchase handlers and the payment
// webhook
package billing

import (
	"clipper/api/internal/billing"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /api/billing/packs
func PackList(c *gin.Context) {
	packs := billing.Packs()

	type packView struct {
		Name    string `json:"name"`
		Credits int    `json:"credits"`
	}

	views := make([]packView, 0, len(packs))
	for _, p := range packs {
		views = append(views, packView{Name: p.Name, Credits: p.Credits})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"packs":   views,
	})
}
