// Package model defines database models
package model

import "time"

type User struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	// Never negative. Top-ups come from the payment webhook, spending from the
	// video processing workflow
	Credits          int     `gorm:"not null;default:0"`
	StripeCustomerID *string `gorm:"uniqueIndex"`
	CreatedAt        time.Time

	UploadedFiles []UploadedFile `gorm:"foreignKey:UserID"`
	Clips         []Clip         `gorm:"foreignKey:UserID"`
}
