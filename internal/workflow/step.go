package workflow

import (
	"clipper/api/internal/model"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Steps is handed to a function's handler and tracks the checkpoints of
// the current run
type Steps struct {
	runID string
	db    *gorm.DB
	done  map[string]string
	seen  map[string]bool
}

func (s *Steps) RunID() string { return s.runID }

// Done reports whether the named step has a checkpoint
func (s *Steps) Done(name string) bool {
	_, ok := s.done[name]
	return ok
}

func (s *Steps) enter(name string) error {
	if name == "" {
		return NonRetriable(fmt.Errorf("step needs a name"))
	}

	if s.seen[name] {
		return NonRetriable(fmt.Errorf("%w: %s", ErrDuplicateStep, name))
	}

	s.seen[name] = true
	return nil
}

func replay[T any](s *Steps, name string) (T, bool, error) {
	var out T

	raw, ok := s.done[name]
	if !ok {
		return out, false, nil
	}

	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, true, NonRetriable(fmt.Errorf("failed to decode checkpoint of step %s, %w", name, err))
	}

	zap.L().Debug("Step replayed from checkpoint", zap.String("run_id", s.runID), zap.String("step", name))
	return out, true, nil
}

func (s *Steps) checkpoint(tx *gorm.DB, name string, out any) error {
	raw, err := json.Marshal(out)
	if err != nil {
		return NonRetriable(fmt.Errorf("failed to encode output of step %s, %w", name, err))
	}

	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}, {Name: "name"}},
		DoNothing: true,
	}).Create(&model.WorkflowStep{
		RunID:  s.runID,
		Name:   name,
		Output: string(raw),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to checkpoint step %s, %w", name, err)
	}

	s.done[name] = string(raw)
	return nil
}

// Run executes fn as the named step unless the run already has a checkpoint
// for it, in which case the checkpointed output is returned. The output must
// survive a JSON round trip. A crash between fn returning and the checkpoint
// being written makes the step run again, so fn must be safe to repeat.
func Run[T any](ctx context.Context, s *Steps, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if err := s.enter(name); err != nil {
		return zero, err
	}

	if out, ok, err := replay[T](s, name); ok {
		return out, err
	}

	start := time.Now()
	out, err := fn(ctx)
	if err != nil {
		return zero, &StepError{Step: name, Err: err}
	}

	if err := s.checkpoint(s.db.WithContext(ctx), name, out); err != nil {
		return zero, err
	}

	zap.L().Debug("Step executed", zap.String("run_id", s.runID), zap.String("step", name), zap.Duration("took", time.Since(start)))
	return out, nil
}

// RunTx is Run for steps that only touch the database. fn's writes and the
// checkpoint commit in the same transaction, so the step takes effect
// exactly once. fn must use tx, not another handle.
func RunTx[T any](ctx context.Context, s *Steps, name string, fn func(ctx context.Context, tx *gorm.DB) (T, error)) (T, error) {
	var zero T

	if err := s.enter(name); err != nil {
		return zero, err
	}

	if out, ok, err := replay[T](s, name); ok {
		return out, err
	}

	start := time.Now()
	var out T

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error

		out, err = fn(ctx, tx)
		if err != nil {
			return &StepError{Step: name, Err: err}
		}

		return s.checkpoint(tx, name, out)
	})
	if err != nil {
		// checkpoint recorded the output before the commit failed
		delete(s.done, name)
		return zero, err
	}

	zap.L().Debug("Step executed", zap.String("run_id", s.runID), zap.String("step", name), zap.Duration("took", time.Since(start)))
	return out, nil
}
