package service

import (
	"clipper/api/internal/model"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func processRuns(ctx context.Context, db *gorm.DB, query string, args ...any) ([]model.WorkflowRun, error) {
	var runs []model.WorkflowRun

	err := db.WithContext(ctx).
		Where(&model.WorkflowRun{Function: ProcessVideoFunction}).
		Where(query, args...).
		Order("created_at").
		Find(&runs).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow runs, %w", err)
	}

	return runs, nil
}

func runFileID(run model.WorkflowRun) string {
	var data ProcessVideoData
	if err := json.Unmarshal([]byte(run.Payload), &data); err != nil {
		zap.L().Warn("Workflow run has an unreadable payload", zap.String("run_id", run.ID), zap.Error(err))
		return ""
	}

	return data.UploadedFileID
}

// MarkStuckFailed moves files left in processing by a run that failed more
// than olderThan ago to failed. Returns how many files changed.
func MarkStuckFailed(ctx context.Context, db *gorm.DB, olderThan time.Duration) (int64, error) {
	runs, err := processRuns(ctx, db, "status = ? AND finished_at < ?", model.RunFailed, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(runs))
	for _, run := range runs {
		if id := runFileID(run); id != "" {
			ids = append(ids, id)
		}
	}

	if len(ids) == 0 {
		return 0, nil
	}

	res := db.WithContext(ctx).
		Model(&model.UploadedFile{}).
		Where("id IN ? AND status = ?", ids, model.StatusProcessing).
		Update("status", model.StatusFailed)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark files as failed, %w", res.Error)
	}

	return res.RowsAffected, nil
}

// RunTrace is a processing run with the steps it checkpointed
type RunTrace struct {
	Run   model.WorkflowRun
	Steps []model.WorkflowStep
}

// RunsForFile returns every processing run of an uploaded file, oldest first
func RunsForFile(ctx context.Context, db *gorm.DB, fileID string) ([]RunTrace, error) {
	runs, err := processRuns(ctx, db, "payload LIKE ?", "%"+fileID+"%")
	if err != nil {
		return nil, err
	}

	traces := []RunTrace{}
	for _, run := range runs {
		if runFileID(run) != fileID {
			continue
		}

		var steps []model.WorkflowStep
		err := db.WithContext(ctx).
			Where("run_id = ?", run.ID).
			Order("id").
			Find(&steps).
			Error
		if err != nil {
			return nil, fmt.Errorf("failed to query steps of run %s, %w", run.ID, err)
		}

		traces = append(traces, RunTrace{Run: run, Steps: steps})
	}

	return traces, nil
}
