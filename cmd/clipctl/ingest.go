package main

import (
	a "clipper/api/aws"
	"clipper/api/cloudflare"
	"clipper/api/db"
	"clipper/api/internal/model"
	"clipper/api/internal/service"
	"clipper/api/internal/workflow"
	"clipper/api/modal"
	"clipper/api/pkg/util"
	"clipper/api/validators"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hibiken/asynq"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func ingest(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("ingest", pflag.ExitOnError)
	path := fs.String("file", "", "Local mp4 file to upload")
	userID := fs.String("user", "", "ID of the user the file belongs to")
	name := fs.String("name", "", "Display name, defaults to the file name")
	fs.Parse(args)

	if *path == "" || *userID == "" {
		return errors.New("--file and --user are required")
	}

	mime, err := mimetype.DetectFile(*path)
	if err != nil {
		return fmt.Errorf("failed to read %s, %w", *path, err)
	}

	if !validators.TypeAllowed(mime.String()) {
		return fmt.Errorf("%s is %s, which is not an allowed upload type", *path, mime.String())
	}

	if *name == "" {
		*name = filepath.Base(*path)
	}

	if err := validators.UploadValidator(*name, mime.String()); err != nil {
		return err
	}

	database, err := db.New()
	if err != nil {
		return err
	}

	var count int64
	if err := database.Model(&model.User{}).Where("id = ?", *userID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to query user, %w", err)
	}
	if count == 0 {
		return fmt.Errorf("user %s not found", *userID)
	}

	var storage *a.S3Client
	if viper.GetString("storage.type") == "r2" {
		storage, err = cloudflare.NewR2()
	} else {
		storage, err = a.NewS3()
	}
	if err != nil {
		return fmt.Errorf("failed to initialize object storage, %w", err)
	}

	f, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return err
	}

	id := util.NewID()
	key := id + "/original.mp4"

	fmt.Printf("Uploading %s (%d bytes) to %s\n", *path, stat.Size(), key)
	if err := storage.Upload(ctx, key, f, stat.Size(), mime.String()); err != nil {
		return err
	}

	err = database.Create(&model.UploadedFile{
		ID:          id,
		UserID:      *userID,
		S3Key:       key,
		DisplayName: *name,
		Status:      model.StatusQueued,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to create uploaded file, %w", err)
	}

	// The engine only routes the event to its subscribers, nothing runs here
	processor, err := modal.NewFromConfig()
	if err != nil {
		return err
	}

	engine := workflow.NewEngine(database, nil)
	if err := engine.Register(service.NewProcessVideo(database, storage, processor, viper.GetInt("workflow.retries"))); err != nil {
		return err
	}

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     viper.GetString("redis.addr"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})
	defer client.Close()

	queued, err := service.TriggerProcessing(ctx, database, workflow.NewAsynqSender(client, engine), id, *userID)
	if err != nil {
		return err
	}

	fmt.Printf("Uploaded file %s, processing queued: %t\n", id, queued)
	return nil
}
