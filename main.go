package main

import (
	"clipper/api/app"
	a "clipper/api/aws"
	"clipper/api/cloudflare"
	"clipper/api/config"
	"clipper/api/db"
	"clipper/api/internal"
	"clipper/api/internal/billing"
	"clipper/api/internal/service"
	"clipper/api/internal/workflow"
	"clipper/api/modal"
	"clipper/api/pkg/security"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/jellydator/ttlcache/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	gin.SetMode(gin.ReleaseMode)

	if err := config.Setup(); err != nil {
		fmt.Fprintln(os.Stderr, "Invalid configuration:", err)
		os.Exit(1)
	}

	if err := app.MakeLogger(viper.GetString("app.log_level")); err != nil {
		panic(err)
	}
	defer zap.L().Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		zap.L().Fatal("Server stopped", zap.Error(err))
	}
}

func newStorage() (*a.S3Client, error) {
	if viper.GetString("storage.type") == "r2" {
		return cloudflare.NewR2()
	}

	return a.NewS3()
}

func baseURL() string {
	scheme := "http"
	if viper.GetBool("host.ssl") {
		scheme = "https"
	}

	return scheme + "://" + viper.GetString("host.domain")
}

func run(ctx context.Context) error {
	mode := viper.GetString("app.mode")

	database, err := db.New()
	if err != nil {
		return err
	}

	storage, err := newStorage()
	if err != nil {
		return fmt.Errorf("failed to initialize object storage, %w", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     viper.GetString("redis.addr"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisOpt.Addr,
		Password: redisOpt.Password,
		DB:       redisOpt.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis, %w", err)
	}

	processor, err := modal.NewFromConfig()
	if err != nil {
		return err
	}

	engine := workflow.NewEngine(database, workflow.NewRedisLimiter(rdb, viper.GetDuration("workflow.lock_ttl")))

	err = engine.Register(service.NewProcessVideo(database, storage, processor, viper.GetInt("workflow.retries")))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if mode == "all" || mode == "api" {
		if err := startAPI(ctx, g, database, storage, engine, redisOpt); err != nil {
			return err
		}
	}

	if mode == "all" || mode == "worker" {
		startWorker(ctx, g, database, engine, redisOpt)
	}

	zap.L().Info("Server starting", zap.String("mode", mode))
	return g.Wait()
}

func startAPI(ctx context.Context, g *errgroup.Group, database *gorm.DB, storage *a.S3Client, engine *workflow.Engine, redisOpt asynq.RedisClientOpt) error {
	client := asynq.NewClient(redisOpt)

	urlCache := ttlcache.NewCache()
	urlCache.SkipTTLExtensionOnHit(true)

	d := &internal.Deps{
		DB:       database,
		Argon:    security.NewArgon(),
		Storage:  storage,
		Events:   workflow.NewAsynqSender(client, engine),
		Payments: billing.NewStripe(viper.GetString("stripe.secret_key"), baseURL()),
		Mailer:   service.NewMailer(),
		URLCache: urlCache,
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", viper.GetInt("host.port")),
		Handler:           app.NewRouter(d).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		zap.L().Info("HTTP server listening", zap.String("addr", srv.Addr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed, %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		client.Close()
		urlCache.Close()

		zap.L().Info("HTTP server stopped")
		return err
	})

	return nil
}

func startWorker(ctx context.Context, g *errgroup.Group, database *gorm.DB, engine *workflow.Engine, redisOpt asynq.RedisClientOpt) {
	worker := workflow.NewWorker(redisOpt, engine, viper.GetInt("workflow.concurrency"))

	g.Go(func() error {
		return worker.Run(ctx)
	})

	g.Go(func() error {
		c, err := service.StepCleanup(database,
			viper.GetString("workflow.cleanup_schedule"),
			viper.GetDuration("workflow.step_retention"))
		if err != nil {
			return err
		}

		<-ctx.Done()
		<-c.Stop().Done()
		return nil
	})
}
