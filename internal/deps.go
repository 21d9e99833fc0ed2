// Package internal holds the dependencies shared by every HTTP handler
package internal

import (
	"clipper/api/internal/billing"
	"clipper/api/internal/service"
	"clipper/api/internal/workflow"
	"clipper/api/pkg/security"
	"context"
	"time"

	"github.com/jellydator/ttlcache/v2"
	"gorm.io/gorm"
)

// Storage is the object store as seen by the handlers
type Storage interface {
	PresignPut(ctx context.Context, key, contentType string) (string, error)
	PresignGet(ctx context.Context, key string) (string, error)
	URLTTL() time.Duration
}

type Deps struct {
	DB       *gorm.DB
	Argon    *security.ArgonHash
	Storage  Storage
	Events   workflow.Sender
	Payments billing.Provider
	Mailer   *service.Mailer
	// Signed playback URLs by object key, kept for less than their expiry
	URLCache *ttlcache.Cache
}
