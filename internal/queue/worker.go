package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/zombar/newscheck/internal/models"
)

// RetrainRunner runs a single-flight retrain
type RetrainRunner interface {
	RetrainNow(ctx context.Context) models.RetrainResult
}

// Calibrator runs a calibration pass
type Calibrator interface {
	Calibrate(ctx context.Context) (models.CalibrationLogEntry, error)
}

// queuePriorities weights the named queues; higher is served more often
var queuePriorities = map[string]int{
	QueueCalibration: 5,
	QueueTraining:    3,
}

// Worker wraps the Asynq server for processing tasks
type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	retrainer   RetrainRunner
	calibrator  Calibrator
	concurrency int
	logger      *slog.Logger
}

// WorkerConfig contains configuration for the queue worker
type WorkerConfig struct {
	RedisAddr   string
	Concurrency int
}

// NewWorker creates a new queue worker
func NewWorker(cfg WorkerConfig, retrainer RetrainRunner, calibrator Calibrator) *Worker {
	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}

	serverCfg := asynq.Config{
		Concurrency:     concurrency,
		Queues:          queuePriorities,
		StrictPriority:  false,
		RetryDelayFunc:  retryDelay,
		ShutdownTimeout: 30 * time.Second,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			slog.Error("task processing error",
				"task_type", task.Type(),
				"error", err,
				"retry_count", retried,
				"max_retries", maxRetry,
			)
		}),
	}

	w := &Worker{
		server:      asynq.NewServer(redisOpt, serverCfg),
		mux:         asynq.NewServeMux(),
		retrainer:   retrainer,
		calibrator:  calibrator,
		concurrency: concurrency,
		logger:      slog.Default(),
	}

	w.registerHandlers()
	return w
}

// registerHandlers registers all task handlers with the worker
func (w *Worker) registerHandlers() {
	w.mux.HandleFunc(TypeRetrainModel, w.handleRetrain)
	w.mux.HandleFunc(TypeRunCalibration, w.handleCalibration)
}

// Handler returns the task multiplexer
func (w *Worker) Handler() asynq.Handler {
	return w.mux
}

// Start begins processing tasks in the background and returns
func (w *Worker) Start() error {
	w.logger.Info("starting asynq worker",
		"concurrency", w.concurrency,
		"queues", queuePriorities,
	)

	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("asynq server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the worker
func (w *Worker) Shutdown() {
	w.logger.Info("shutting down asynq worker")
	w.server.Shutdown()
}

// retryDelay backs off calibration retries: 30s, 2m, 10m
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	delays := []time.Duration{
		30 * time.Second,
		2 * time.Minute,
		10 * time.Minute,
	}
	if n < len(delays) {
		return delays[n]
	}
	return delays[len(delays)-1]
}
