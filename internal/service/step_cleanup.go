package service

import (
	"clipper/api/internal/model"
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StepCleanup schedules the removal of step checkpoints belonging to runs
// that finished more than retention ago. The returned cron is already
// started, stop it on shutdown.
func StepCleanup(db *gorm.DB, schedule string, retention time.Duration) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		n, err := CleanupSteps(context.Background(), db, retention)
		if err != nil {
			zap.L().Error("Failed to clean up step checkpoints", zap.Error(err))
			return
		}

		if n > 0 {
			zap.L().Debug("Cleaned up step checkpoints", zap.Int64("deleted", n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule '%s', %w", schedule, err)
	}

	zap.L().Debug("Step cleanup attached", zap.String("schedule", schedule), zap.Duration("retention", retention))

	c.Start()
	return c, nil
}

// CleanupSteps deletes the checkpoints of runs finished before now-retention.
// Runs still in progress keep theirs no matter how old they are.
func CleanupSteps(ctx context.Context, db *gorm.DB, retention time.Duration) (int64, error) {
	finished := db.
		Model(&model.WorkflowRun{}).
		Select("id").
		Where("status <> ? AND finished_at < ?", model.RunRunning, time.Now().Add(-retention))

	res := db.WithContext(ctx).
		Where("run_id IN (?)", finished).
		Delete(&model.WorkflowStep{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete step checkpoints, %w", res.Error)
	}

	return res.RowsAffected, nil
}
