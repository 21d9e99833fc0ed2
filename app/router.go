// Package app wires the HTTP handlers into a gin router
package app

import (
	"clipper/api/app/billing"
	"clipper/api/app/clip"
	"clipper/api/app/file"
	"clipper/api/app/root"
	"clipper/api/app/user"
	"clipper/api/internal"
	"clipper/api/pkg/middleware"
	"time"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var store = persist.NewMemoryStore(time.Minute)

func NewRouter(d *internal.Deps) *gin.Engine {
	router := gin.New()

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     viper.GetStringSlice("host.cors_origins"),
			AllowMethods:     []string{"GET", "POST", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.TurnstileHeader},
			ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
		ginzap.RecoveryWithZap(zap.L(), true),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	rateLimit := viper.GetInt("security.rate_limit")

	jwt := middleware.NewJWTMiddleware(d.DB)
	turnstile := middleware.NewTurnstileMiddleware()
	smallBody := middleware.BodySizeLimiter(64 << 10)
	rateLimiter := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: rateLimit,
		Burst:             rateLimit * 2,
	})

	m := router.Group("/api", rateLimiter, smallBody)
	{
		// HEAD /api/heartbeat		-> Used to check if the server is alive
		m.HEAD("/heartbeat", root.Heartbeat)

		// GET /api/validate		-> Validates a JWT token
		m.GET("/validate", jwt, root.Validate)
	}

	u := m.Group("/users")
	{
		// GET /api/users		-> Returns the credits, files and clips of a user
		u.GET("", jwt, func(c *gin.Context) { user.UserFetch(c, d) })

		// POST /api/users		-> Registers a new user
		u.POST("", turnstile, func(c *gin.Context) { user.UserRegister(c, d) })

		// POST /api/users/login	-> Logs in a user and sets the auth_token cookie
		u.POST("/login", func(c *gin.Context) { user.UserLogin(c, d) })
	}

	f := m.Group("/files", jwt)
	{
		// GET /api/files		-> Returns the user's uploaded files with their status
		f.GET("", func(c *gin.Context) { file.FileList(c, d) })

		// POST /api/files/upload-url	-> Returns a presigned URL to upload a new file to
		f.POST("/upload-url", func(c *gin.Context) { file.FileUploadURL(c, d) })

		// POST /api/files/:id/process	-> Starts processing an uploaded file
		f.POST("/:id/process", func(c *gin.Context) { file.FileProcess(c, d) })
	}

	cl := m.Group("/clips", jwt)
	{
		// GET /api/clips		-> Returns the user's clips, signed if ?signed=1
		cl.GET("", func(c *gin.Context) { clip.ClipList(c, d) })

		// GET /api/clips/:id/url	-> Returns a signed playback URL for a clip
		cl.GET("/:id/url", func(c *gin.Context) { clip.ClipURL(c, d) })
	}

	b := m.Group("/billing")
	{
		// GET /api/billing/packs	-> Returns the credit packs on sale
		b.GET("/packs", cacheFor(5*60), billing.PackList)

		// POST /api/billing/checkout	-> Starts a checkout for a credit pack
		b.POST("/checkout", jwt, func(c *gin.Context) { billing.Checkout(c, d) })
	}

	// POST /webhooks/stripe	-> Stripe payment events
	router.POST("/webhooks/stripe", smallBody, func(c *gin.Context) { billing.StripeWebhook(c, d) })

	return router
}

func cacheFor(sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(store, time.Second*time.Duration(sec))
}
