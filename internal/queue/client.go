package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Task type constants
const (
	TypeRetrainModel   = "newscheck:retrain_model"
	TypeRunCalibration = "newscheck:run_calibration"
)

// Queue names
const (
	QueueTraining    = "training"
	QueueCalibration = "calibration"
)

// retrainUniqueWindow collapses retrain requests arriving while one is queued
const retrainUniqueWindow = 10 * time.Minute

// TaskPayload is the payload shared by all background tasks
type TaskPayload struct {
	// Trigger names what caused the task (feedback, schedule, manual)
	Trigger string `json:"trigger"`
	// Tracing and timing fields
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"` // Unix timestamp in nanoseconds
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client wraps the Asynq client for enqueueing tasks
type Client struct {
	client         enqueuer
	retrainTimeout time.Duration
	logger         *slog.Logger
}

// ClientConfig contains configuration for the queue client
type ClientConfig struct {
	RedisAddr string
	// RetrainTimeout bounds a retrain task; zero leaves it unbounded
	RetrainTimeout time.Duration
}

// NewClient creates a new queue client
func NewClient(cfg ClientConfig) *Client {
	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
	}

	return &Client{
		client:         asynq.NewClient(redisOpt),
		retrainTimeout: cfg.RetrainTimeout,
		logger:         slog.Default(),
	}
}

// newPayload captures the trace context of ctx and records an enqueue event
func newPayload(ctx context.Context, taskType, trigger string) TaskPayload {
	payload := TaskPayload{
		Trigger:    trigger,
		EnqueuedAt: time.Now().UnixNano(),
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		payload.TraceID = spanCtx.TraceID().String()
		payload.SpanID = spanCtx.SpanID().String()

		span.AddEvent("task_enqueued", trace.WithAttributes(
			attribute.String("task.type", taskType),
			attribute.String("task.trigger", trigger),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		))
	}
	return payload
}

// NewRetrainTask builds a retrain task. Only one may be pending at a time.
func NewRetrainTask(ctx context.Context, trigger string, timeout time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(newPayload(ctx, TypeRetrainModel, trigger))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}
	return asynq.NewTask(TypeRetrainModel, data, retrainTaskOptions(timeout)...), nil
}

// retrainTaskOptions never retries. The retrain itself runs detached from
// the task context, so a timeout only bounds how long the task is tracked.
func retrainTaskOptions(timeout time.Duration) []asynq.Option {
	opts := []asynq.Option{
		asynq.MaxRetry(0),
		asynq.Unique(retrainUniqueWindow),
		asynq.Queue(QueueTraining),
		asynq.Retention(24 * time.Hour),
	}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}
	return opts
}

// NewCalibrationTask builds a calibration task
func NewCalibrationTask(ctx context.Context, trigger string) (*asynq.Task, error) {
	data, err := json.Marshal(newPayload(ctx, TypeRunCalibration, trigger))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}

	return asynq.NewTask(TypeRunCalibration, data,
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Queue(QueueCalibration),
		asynq.Retention(7*24*time.Hour),
	), nil
}

// EnqueueRetrain enqueues a retrain task. A retrain already pending is
// not an error; an empty ID is returned in that case.
func (c *Client) EnqueueRetrain(ctx context.Context, trigger string) (string, error) {
	task, err := NewRetrainTask(ctx, trigger, c.retrainTimeout)
	if err != nil {
		return "", err
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		c.logger.Info("retrain already queued", "trigger", trigger)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to enqueue retrain task: %w", err)
	}

	c.logger.Info("retrain task enqueued", "task_id", info.ID, "trigger", trigger)
	return info.ID, nil
}

// LaunchRetrain starts a retrain in the worker process
func (c *Client) LaunchRetrain(ctx context.Context) error {
	_, err := c.EnqueueRetrain(ctx, "feedback")
	return err
}

// EnqueueCalibration enqueues a calibration run
func (c *Client) EnqueueCalibration(ctx context.Context, trigger string) (string, error) {
	task, err := NewCalibrationTask(ctx, trigger)
	if err != nil {
		return "", err
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue calibration task: %w", err)
	}

	c.logger.Info("calibration task enqueued", "task_id", info.ID, "trigger", trigger)
	return info.ID, nil
}

// Close closes the client connection
func (c *Client) Close() error {
	return c.client.Close()
}
