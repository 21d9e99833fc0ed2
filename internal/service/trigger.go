package service

import (
	"clipper/api/internal/model"
	"clipper/api/internal/workflow"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrFileNotFound = errors.New("uploaded file not found")

// ProcessVideoEventID is the event ID used for fileID. It stays the same
// across trigger attempts, so a send that reached the queue but reported an
// error is not turned into a second run when the client retries.
func ProcessVideoEventID(fileID string) string {
	return ProcessVideoEvent + ":" + fileID
}

// TriggerProcessing sends the processing event for an uploaded file at most
// once. The uploaded flag is claimed with a conditional update and only the
// caller that flipped it sends the event. If sending fails the flag is
// released again so the client can retry. Reports whether an event was sent.
func TriggerProcessing(ctx context.Context, db *gorm.DB, sender workflow.Sender, fileID, userID string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&model.UploadedFile{}).
		Where("id = ? AND user_id = ? AND uploaded = ?", fileID, userID, false).
		Update("uploaded", true)
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim uploaded file, %w", res.Error)
	}

	if res.RowsAffected == 0 {
		var count int64

		err := db.WithContext(ctx).
			Model(&model.UploadedFile{}).
			Where("id = ? AND user_id = ?", fileID, userID).
			Count(&count).
			Error
		if err != nil {
			return false, fmt.Errorf("failed to query uploaded file, %w", err)
		}

		if count == 0 {
			return false, ErrFileNotFound
		}

		zap.L().Debug("Processing already triggered", zap.String("uploaded_file_id", fileID))
		return false, nil
	}

	e, err := workflow.NewEventWithID(ProcessVideoEventID(fileID), ProcessVideoEvent, ProcessVideoData{
		UploadedFileID: fileID,
		UserID:         userID,
	})
	if err == nil {
		err = sender.Send(ctx, e)
	}

	if err != nil {
		rerr := db.WithContext(context.WithoutCancel(ctx)).
			Model(&model.UploadedFile{}).
			Where("id = ?", fileID).
			Update("uploaded", false).
			Error
		if rerr != nil {
			zap.L().Error("Failed to release uploaded flag", zap.String("uploaded_file_id", fileID), zap.Error(rerr))
		}

		return false, fmt.Errorf("failed to send processing event, %w", err)
	}

	zap.L().Info("Processing triggered",
		zap.String("uploaded_file_id", fileID),
		zap.String("user_id", userID),
		zap.String("event_id", e.ID))
	return true, nil
}
