package service

import (
	"clipper/api/internal/model"
	"context"
	"fmt"

	"gorm.io/gorm"
)

// FileSummary is an uploaded file with the number of clips cut from it
type FileSummary struct {
	model.UploadedFile
	ClipCount int64 `json:"clipCount"`
}

type FileQuery struct {
	// Only files in this status, empty for all
	Status string
	Limit  int
	Offset int
}

// ListFiles returns the user's files whose processing was triggered,
// newest first
func ListFiles(ctx context.Context, db *gorm.DB, userID string, q FileQuery) ([]FileSummary, error) {
	query := db.WithContext(ctx).
		Where("user_id = ? AND uploaded = ?", userID, true).
		Order("created_at desc")

	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}

	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}

	var files []model.UploadedFile
	if err := query.Find(&files).Error; err != nil {
		return nil, fmt.Errorf("failed to query uploaded files, %w", err)
	}

	summaries := make([]FileSummary, 0, len(files))
	if len(files) == 0 {
		return summaries, nil
	}

	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}

	var counts []struct {
		UploadedFileID string
		Count          int64
	}

	err := db.WithContext(ctx).
		Model(&model.Clip{}).
		Select("uploaded_file_id, count(*) as count").
		Where("uploaded_file_id IN ?", ids).
		Group("uploaded_file_id").
		Scan(&counts).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to count clips, %w", err)
	}

	byFile := make(map[string]int64, len(counts))
	for _, c := range counts {
		byFile[c.UploadedFileID] = c.Count
	}

	for _, f := range files {
		summaries = append(summaries, FileSummary{
			UploadedFile: f,
			ClipCount:    byFile[f.ID],
		})
	}

	return summaries, nil
}

// ListClips returns the user's clips, newest first
func ListClips(ctx context.Context, db *gorm.DB, userID string) ([]model.Clip, error) {
	clips := []model.Clip{}

	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&clips).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to query clips, %w", err)
	}

	return clips, nil
}
