package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const QueueName = "workflows"

// How long a run waits before trying a busy concurrency key again
var limitedRetryDelay = 3 * time.Second

// Sender publishes events to the functions subscribed to them
type Sender interface {
	Send(ctx context.Context, e Event) error
}

// TaskType is the asynq task type a function's runs are enqueued under
func TaskType(fnID string) string {
	return "workflow:" + fnID
}

// AsynqSender turns an event into one asynq task per subscribed function.
// The task ID is the run ID, so sending the same event twice is harmless.
type AsynqSender struct {
	client *asynq.Client
	engine *Engine
}

func NewAsynqSender(client *asynq.Client, engine *Engine) *AsynqSender {
	return &AsynqSender{
		client: client,
		engine: engine,
	}
}

func (s *AsynqSender) Send(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event, %w", err)
	}

	fns := s.engine.Subscribers(e.Name)
	if len(fns) == 0 {
		zap.L().Warn("Event has no subscribed functions", zap.String("event", e.Name), zap.String("event_id", e.ID))
		return nil
	}

	for _, fn := range fns {
		task := asynq.NewTask(TaskType(fn.ID), payload,
			asynq.TaskID(RunID(fn.ID, e.ID)),
			asynq.MaxRetry(fn.Retries),
			asynq.Queue(QueueName),
		)

		info, err := s.client.EnqueueContext(ctx, task)
		if err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				zap.L().Debug("Event already enqueued", zap.String("function", fn.ID), zap.String("event_id", e.ID))
				continue
			}

			return fmt.Errorf("failed to enqueue %s, %w", fn.ID, err)
		}

		zap.L().Debug("Event enqueued",
			zap.String("function", fn.ID),
			zap.String("event_id", e.ID),
			zap.String("task_id", info.ID))
	}

	return nil
}

// A busy concurrency key is not a failure and must not use up the retry
// budget of the run
func isFailure(err error) bool {
	return !errors.Is(err, ErrConcurrencyLimited)
}

func retryDelay(n int, err error, t *asynq.Task) time.Duration {
	if errors.Is(err, ErrConcurrencyLimited) {
		return limitedRetryDelay
	}

	return asynq.DefaultRetryDelayFunc(n, err, t)
}

// Worker consumes workflow tasks and executes them on the engine
type Worker struct {
	srv    *asynq.Server
	mux    *asynq.ServeMux
	engine *Engine
}

func NewWorker(redisOpt asynq.RedisConnOpt, engine *Engine, concurrency int) *Worker {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:    concurrency,
		Queues:         map[string]int{QueueName: 1},
		Logger:         zap.S(),
		IsFailure:      isFailure,
		RetryDelayFunc: retryDelay,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			if errors.Is(err, ErrConcurrencyLimited) {
				return
			}

			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			zap.L().Warn("Workflow task failed",
				zap.String("type", t.Type()),
				zap.Int("retried", retried),
				zap.Int("max_retry", maxRetry),
				zap.Error(err))
		}),
	})

	w := &Worker{
		srv:    srv,
		mux:    asynq.NewServeMux(),
		engine: engine,
	}

	for _, fn := range engine.Functions() {
		w.mux.HandleFunc(TaskType(fn.ID), w.handle(fn.ID))
	}

	return w
}

func (w *Worker) handle(fnID string) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var e Event
		if err := json.Unmarshal(t.Payload(), &e); err != nil {
			return fmt.Errorf("invalid event payload: %v, %w", err, asynq.SkipRetry)
		}

		err := w.engine.Execute(ctx, fnID, e)
		if err != nil && IsNonRetriable(err) {
			return fmt.Errorf("%w, %w", err, asynq.SkipRetry)
		}

		return err
	}
}

// Run processes tasks until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	if err := w.srv.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start workflow worker, %w", err)
	}

	zap.L().Info("Workflow worker started", zap.Int("functions", len(w.engine.Functions())))

	<-ctx.Done()
	w.srv.Shutdown()

	zap.L().Info("Workflow worker stopped")
	return nil
}
