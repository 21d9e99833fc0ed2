package service

import (
	"clipper/api/internal/model"
	"clipper/api/internal/workflow"
	"clipper/api/pkg/util"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	ProcessVideoFunction = "process-video"
	ProcessVideoEvent    = "process-video-events"

	// Suffix of the normalized source the processing endpoint writes next to
	// the clips. It is never a clip itself
	originalSuffix = "original.mp4"
)

// ProcessVideoData is the payload of a process-video-events event
type ProcessVideoData struct {
	UploadedFileID string `json:"uploadedFileId"`
	UserID         string `json:"userId"`
}

// ObjectLister lists object keys under a prefix
type ObjectLister interface {
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// VideoProcessor asks the processing endpoint to cut clips out of an object
type VideoProcessor interface {
	ProcessVideo(ctx context.Context, s3Key string) error
}

type creditCheck struct {
	UserID  string `json:"userId"`
	Credits int    `json:"credits"`
	S3Key   string `json:"s3Key"`
}

type videoPipeline struct {
	db        *gorm.DB
	store     ObjectLister
	processor VideoProcessor
}

// NewProcessVideo returns the workflow turning one uploaded file into clips.
// Runs of the same user never overlap, each step is retried as part of the
// run up to retries times.
func NewProcessVideo(db *gorm.DB, store ObjectLister, processor VideoProcessor, retries int) *workflow.Function {
	p := &videoPipeline{
		db:        db,
		store:     store,
		processor: processor,
	}

	return &workflow.Function{
		ID:             ProcessVideoFunction,
		Event:          ProcessVideoEvent,
		Retries:        retries,
		ConcurrencyKey: workflow.KeyFromData("userId"),
		Handler:        p.handle,
	}
}

// OutputPrefix is the prefix the processing endpoint writes the clips of key
// under: its first path segment
func OutputPrefix(key string) string {
	first, _, _ := strings.Cut(key, "/")
	return first + "/"
}

// ClipKeys drops the normalized source object from a listing
func ClipKeys(keys []string) []string {
	clips := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasSuffix(k, originalSuffix) {
			continue
		}
		clips = append(clips, k)
	}

	return clips
}

func (p *videoPipeline) handle(ctx context.Context, e workflow.Event, s *workflow.Steps) error {
	var data ProcessVideoData
	if err := e.Decode(&data); err != nil {
		return workflow.NonRetriable(fmt.Errorf("failed to decode event data, %w", err))
	}

	if data.UploadedFileID == "" {
		return workflow.NonRetriable(errors.New("event has no uploadedFileId"))
	}

	log := zap.L().With(
		zap.String("run_id", s.RunID()),
		zap.String("uploaded_file_id", data.UploadedFileID),
	)

	check, err := workflow.Run(ctx, s, "check-credits", func(ctx context.Context) (creditCheck, error) {
		return p.checkCredits(ctx, data.UploadedFileID)
	})
	if err != nil {
		return err
	}

	if check.Credits <= 0 {
		log.Info("User has no credits left, skipping processing", zap.String("user_id", check.UserID))

		_, err = workflow.RunTx(ctx, s, "set-status-no-credits", func(ctx context.Context, tx *gorm.DB) (struct{}, error) {
			return struct{}{}, setStatus(tx, data.UploadedFileID, model.StatusNoCredits)
		})
		return err
	}

	_, err = workflow.RunTx(ctx, s, "set-status-processing", func(ctx context.Context, tx *gorm.DB) (struct{}, error) {
		return struct{}{}, setStatus(tx, data.UploadedFileID, model.StatusProcessing)
	})
	if err != nil {
		return err
	}

	_, err = workflow.Run(ctx, s, "call-modal-endpoint", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.processor.ProcessVideo(ctx, check.S3Key)
	})
	if err != nil {
		return err
	}

	keys, err := workflow.Run(ctx, s, "list-outputs", func(ctx context.Context) ([]string, error) {
		listed, err := p.store.ListKeys(ctx, OutputPrefix(check.S3Key))
		if err != nil {
			return nil, fmt.Errorf("failed to list processing output, %w", err)
		}
		return ClipKeys(listed), nil
	})
	if err != nil {
		return err
	}

	found, err := workflow.RunTx(ctx, s, "create-clips-in-db", func(ctx context.Context, tx *gorm.DB) (int, error) {
		return createClips(tx, data.UploadedFileID, check.UserID, keys)
	})
	if err != nil {
		return err
	}

	spent, err := workflow.RunTx(ctx, s, "deduct-credit", func(ctx context.Context, tx *gorm.DB) (int, error) {
		return deductCredits(tx, check.UserID, found)
	})
	if err != nil {
		return err
	}

	_, err = workflow.RunTx(ctx, s, "set-status-processed", func(ctx context.Context, tx *gorm.DB) (struct{}, error) {
		return struct{}{}, setStatus(tx, data.UploadedFileID, model.StatusProcessed)
	})
	if err != nil {
		return err
	}

	log.Info("Video processed", zap.Int("clips", found), zap.Int("credits_spent", spent))
	return nil
}

func (p *videoPipeline) checkCredits(ctx context.Context, fileID string) (creditCheck, error) {
	var file model.UploadedFile

	err := p.db.WithContext(ctx).
		Where("id = ?", fileID).
		First(&file).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return creditCheck{}, workflow.NonRetriable(fmt.Errorf("uploaded file %s not found", fileID))
		}
		return creditCheck{}, fmt.Errorf("failed to query uploaded file, %w", err)
	}

	var user model.User

	err = p.db.WithContext(ctx).
		Select("id", "credits").
		Where("id = ?", file.UserID).
		First(&user).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return creditCheck{}, workflow.NonRetriable(fmt.Errorf("owner %s of uploaded file %s not found", file.UserID, fileID))
		}
		return creditCheck{}, fmt.Errorf("failed to query user, %w", err)
	}

	return creditCheck{
		UserID:  user.ID,
		Credits: user.Credits,
		S3Key:   file.S3Key,
	}, nil
}

// createClips records one clip per output key and returns how many rows were
// inserted. Keys that already have a row are skipped and not counted, so a
// repeated run never bills for the same clip twice.
func createClips(tx *gorm.DB, fileID, userID string, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	clips := make([]model.Clip, 0, len(keys))
	for _, k := range keys {
		clips = append(clips, model.Clip{
			ID:             util.NewID(),
			S3Key:          k,
			UserID:         userID,
			UploadedFileID: fileID,
		})
	}

	res := tx.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "s3_key"}},
			DoNothing: true,
		}).
		Create(&clips)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to create clips, %w", res.Error)
	}

	return int(res.RowsAffected), nil
}

// deductCredits takes min(balance, clips) credits from the user. The update
// only applies while the balance still covers the amount, so the balance
// can't go negative even if another writer got in between.
func deductCredits(tx *gorm.DB, userID string, clips int) (int, error) {
	if clips <= 0 {
		return 0, nil
	}

	var user model.User

	err := tx.
		Select("credits").
		Where("id = ?", userID).
		First(&user).
		Error
	if err != nil {
		return 0, fmt.Errorf("failed to query user credits, %w", err)
	}

	n := min(user.Credits, clips)
	if n <= 0 {
		return 0, nil
	}

	res := tx.
		Model(&model.User{}).
		Where("id = ? AND credits >= ?", userID, n).
		Update("credits", gorm.Expr("credits - ?", n))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to deduct credits, %w", res.Error)
	}

	if res.RowsAffected != 1 {
		return 0, errors.New("credit balance changed during deduction")
	}

	return n, nil
}

func setStatus(tx *gorm.DB, fileID, status string) error {
	err := tx.
		Model(&model.UploadedFile{}).
		Where("id = ?", fileID).
		Update("status", status).
		Error
	if err != nil {
		return fmt.Errorf("failed to set status '%s', %w", status, err)
	}

	return nil
}
