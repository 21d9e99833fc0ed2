package model

import "time"

// BillingEvent records every payment webhook event that was applied, keyed by
// the provider's event ID, so redeliveries don't add credits twice
type BillingEvent struct {
	ID           string `gorm:"primaryKey"`
	Type         string `gorm:"not null"`
	CustomerID   string `gorm:"index"`
	PriceID      string
	CreditsAdded int
	CreatedAt    time.Time
}
