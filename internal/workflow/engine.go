package workflow

import (
	"clipper/api/internal/model"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler is the body of a workflow function. Side effects belong inside
// steps (Run, RunTx), everything outside them runs again on every attempt.
type Handler func(ctx context.Context, e Event, s *Steps) error

type Function struct {
	ID string
	// Name of the event that triggers the function
	Event string
	// Additional attempts after the first one fails
	Retries int
	// Runs sharing a key never execute concurrently. nil means no limit
	ConcurrencyKey func(Event) (string, error)
	Handler        Handler
}

type Engine struct {
	db      *gorm.DB
	limiter Limiter

	mu        sync.RWMutex
	functions map[string]*Function
}

func NewEngine(db *gorm.DB, limiter Limiter) *Engine {
	if limiter == nil {
		limiter = NewMemoryLimiter()
	}

	return &Engine{
		db:        db,
		limiter:   limiter,
		functions: make(map[string]*Function),
	}
}

func (e *Engine) Register(fn *Function) error {
	if fn == nil || fn.ID == "" {
		return errors.New("function needs an ID")
	}
	if fn.Event == "" {
		return fmt.Errorf("function %s has no trigger event", fn.ID)
	}
	if fn.Handler == nil {
		return fmt.Errorf("function %s has no handler", fn.ID)
	}
	if fn.Retries < 0 {
		return fmt.Errorf("function %s has a negative retry budget", fn.ID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.functions[fn.ID]; ok {
		return fmt.Errorf("function %s is already registered", fn.ID)
	}

	e.functions[fn.ID] = fn
	zap.L().Debug("Workflow function registered", zap.String("function", fn.ID), zap.String("event", fn.Event))
	return nil
}

func (e *Engine) Function(id string) (*Function, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	fn, ok := e.functions[id]
	return fn, ok
}

// Functions returns every registered function ordered by ID
func (e *Engine) Functions() []*Function {
	e.mu.RLock()
	defer e.mu.RUnlock()

	fns := make([]*Function, 0, len(e.functions))
	for _, fn := range e.functions {
		fns = append(fns, fn)
	}

	sort.Slice(fns, func(i, j int) bool { return fns[i].ID < fns[j].ID })
	return fns
}

// Subscribers returns the functions triggered by the named event
func (e *Engine) Subscribers(event string) []*Function {
	var fns []*Function
	for _, fn := range e.Functions() {
		if fn.Event == event {
			fns = append(fns, fn)
		}
	}

	return fns
}

// RunID is the ID of the run a function gets for an event
func RunID(fnID, eventID string) string {
	return fnID + ":" + eventID
}

// Execute performs one attempt of fnID for ev. Steps checkpointed by earlier
// attempts are replayed. Runs that already completed or failed are left
// alone, so redelivering an event never executes a function twice.
func (e *Engine) Execute(ctx context.Context, fnID string, ev Event) error {
	fn, ok := e.Function(fnID)
	if !ok {
		return NonRetriable(fmt.Errorf("%w: %s", ErrUnknownFunction, fnID))
	}

	log := zap.L().With(
		zap.String("function", fn.ID),
		zap.String("event_id", ev.ID),
		zap.String("run_id", RunID(fn.ID, ev.ID)),
	)

	if fn.ConcurrencyKey != nil {
		key, err := fn.ConcurrencyKey(ev)
		if err != nil {
			return NonRetriable(fmt.Errorf("failed to get concurrency key, %w", err))
		}

		release, err := e.limiter.Acquire(ctx, fn.ID+":"+key)
		if err != nil {
			if errors.Is(err, ErrConcurrencyLimited) {
				log.Debug("Concurrency key busy, run postponed", zap.String("key", key))
			}
			return err
		}
		defer release()
	}

	run, err := e.loadRun(ctx, fn, ev)
	if err != nil {
		return err
	}

	if run.Status != model.RunRunning {
		log.Info("Run already finished, skipping", zap.String("status", run.Status))
		return nil
	}

	run.Attempts++
	if err := e.db.WithContext(ctx).
		Model(&model.WorkflowRun{}).
		Where("id = ?", run.ID).
		Update("attempts", run.Attempts).
		Error; err != nil {
		return fmt.Errorf("failed to record run attempt, %w", err)
	}

	steps, err := e.loadSteps(ctx, run.ID)
	if err != nil {
		return err
	}

	log = log.With(zap.Int("attempt", run.Attempts))
	log.Info("Workflow run started", zap.Int("checkpointed_steps", len(steps.done)))

	start := time.Now()
	err = callHandler(ctx, fn.Handler, ev, steps)
	if err == nil {
		if err := e.finish(ctx, run.ID, model.RunCompleted, ""); err != nil {
			return err
		}

		log.Info("Workflow run completed", zap.Duration("took", time.Since(start)))
		return nil
	}

	if IsNonRetriable(err) || run.Attempts > fn.Retries {
		if ferr := e.finish(ctx, run.ID, model.RunFailed, err.Error()); ferr != nil {
			log.Error("Failed to mark run as failed", zap.Error(ferr))
		}

		log.Error("Workflow run failed", zap.Error(err))
		return NonRetriable(err)
	}

	if uerr := e.db.WithContext(ctx).
		Model(&model.WorkflowRun{}).
		Where("id = ?", run.ID).
		Update("error", err.Error()).
		Error; uerr != nil {
		log.Error("Failed to record run error", zap.Error(uerr))
	}

	log.Warn("Workflow attempt failed, will be retried", zap.Error(err), zap.Int("retries", fn.Retries))
	return err
}

func (e *Engine) loadRun(ctx context.Context, fn *Function, ev Event) (*model.WorkflowRun, error) {
	run := &model.WorkflowRun{
		ID:       RunID(fn.ID, ev.ID),
		Function: fn.ID,
		Event:    ev.Name,
		Payload:  string(ev.Data),
		Status:   model.RunRunning,
	}

	err := e.db.WithContext(ctx).
		Where("id = ?", run.ID).
		FirstOrCreate(run).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow run, %w", err)
	}

	return run, nil
}

func (e *Engine) loadSteps(ctx context.Context, runID string) (*Steps, error) {
	var rows []model.WorkflowStep

	err := e.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Find(&rows).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to load step checkpoints, %w", err)
	}

	s := &Steps{
		runID: runID,
		db:    e.db,
		done:  make(map[string]string, len(rows)),
		seen:  make(map[string]bool),
	}

	for _, row := range rows {
		s.done[row.Name] = row.Output
	}

	return s, nil
}

func (e *Engine) finish(ctx context.Context, runID, status, msg string) error {
	now := time.Now()

	err := e.db.WithContext(ctx).
		Model(&model.WorkflowRun{}).
		Where("id = ?", runID).
		Updates(map[string]any{
			"status":      status,
			"error":       msg,
			"finished_at": &now,
		}).
		Error
	if err != nil {
		return fmt.Errorf("failed to mark run %s, %w", status, err)
	}

	return nil
}

func callHandler(ctx context.Context, h Handler, ev Event, s *Steps) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workflow handler panicked: %v", r)
		}
	}()

	return h(ctx, ev, s)
}
