// Package billing sells credit packs through Stripe and applies the
// payments reported by its webhook
package billing

import (
	"errors"

	"github.com/spf13/viper"
)

var ErrUnknownPack = errors.New("unknown credit pack")

// Pack is a fixed amount of credits sold for one Stripe price
type Pack struct {
	Name    string `json:"name"`
	PriceID string `json:"priceId"`
	Credits int    `json:"credits"`
}

var packNames = []string{"small", "medium", "large"}

// Packs returns the configured packs, smallest first
func Packs() []Pack {
	packs := make([]Pack, 0, len(packNames))
	for _, name := range packNames {
		packs = append(packs, Pack{
			Name:    name,
			PriceID: viper.GetString("stripe.packs." + name + ".price_id"),
			Credits: viper.GetInt("stripe.packs." + name + ".credits"),
		})
	}

	return packs
}

func FindPack(name string) (Pack, error) {
	for _, p := range Packs() {
		if p.Name == name {
			return p, nil
		}
	}

	return Pack{}, ErrUnknownPack
}

// CreditsForPrice returns how many credits a price buys, 0 for prices that
// aren't one of the packs
func CreditsForPrice(priceID string) int {
	if priceID == "" {
		return 0
	}

	for _, p := range Packs() {
		if p.PriceID == priceID {
			return p.Credits
		}
	}

	return 0
}
