package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/newscheck/internal/models"
)

const tracerName = "newscheck/queue"

// startTaskSpan decodes the payload and continues the trace recorded at
// enqueue time. The returned span must be ended by the caller.
func startTaskSpan(ctx context.Context, t *asynq.Task) (context.Context, trace.Span, TaskPayload, error) {
	var payload TaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return ctx, trace.SpanFromContext(ctx), payload, fmt.Errorf("invalid task payload: %w: %w", err, asynq.SkipRetry)
	}

	var queueWait time.Duration
	if payload.EnqueuedAt > 0 {
		queueWait = time.Since(time.Unix(0, payload.EnqueuedAt))
	}

	if payload.TraceID != "" && payload.SpanID != "" {
		traceID, terr := trace.TraceIDFromHex(payload.TraceID)
		spanID, serr := trace.SpanIDFromHex(payload.SpanID)
		if terr == nil && serr == nil {
			remote := trace.NewSpanContext(trace.SpanContextConfig{
				TraceID:    traceID,
				SpanID:     spanID,
				TraceFlags: trace.FlagsSampled,
				Remote:     true,
			})
			ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
		}
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "asynq.task.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("task.type", t.Type()),
			attribute.String("task.trigger", payload.Trigger),
			attribute.Float64("queue.wait_time_seconds", queueWait.Seconds()),
		),
	)
	span.AddEvent("task_processing_started", trace.WithAttributes(
		attribute.Float64("wait_time_seconds", queueWait.Seconds()),
	))
	return ctx, span, payload, nil
}

// handleRetrain runs a retrain. Failures are not retried; the next
// feedback submission or scheduled check tries again.
func (w *Worker) handleRetrain(ctx context.Context, t *asynq.Task) error {
	ctx, span, payload, err := startTaskSpan(ctx, t)
	if err != nil {
		w.logger.Error("failed to unmarshal task payload", "error", err)
		return err
	}
	defer span.End()

	w.logger.Info("retraining classifier", "trigger", payload.Trigger)
	result := w.retrainer.RetrainNow(ctx)

	span.SetAttributes(
		attribute.Bool("retrain.trained", result.Trained),
		attribute.Int("retrain.feedback_count", result.FeedbackCount),
		attribute.String("retrain.reason", result.Reason),
	)

	switch result.Reason {
	case models.ReasonTrainingFailed, models.ReasonException:
		span.SetStatus(codes.Error, result.Reason)
		return fmt.Errorf("retrain %s: %s: %w", result.Reason, result.Error, asynq.SkipRetry)
	case models.ReasonAlreadyRunning:
		w.logger.Info("retrain skipped, another run in progress")
	}

	w.logger.Info("retrain task finished",
		"trained", result.Trained,
		"feedback_count", result.FeedbackCount,
		"reason", result.Reason,
	)
	return nil
}

// handleCalibration runs a calibration pass
func (w *Worker) handleCalibration(ctx context.Context, t *asynq.Task) error {
	ctx, span, payload, err := startTaskSpan(ctx, t)
	if err != nil {
		w.logger.Error("failed to unmarshal task payload", "error", err)
		return err
	}
	defer span.End()

	entry, err := w.calibrator.Calibrate(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "calibration failed")
		return fmt.Errorf("calibration failed: %w", err)
	}

	span.SetAttributes(
		attribute.Int("calibration.total", entry.TotalAnalyses),
		attribute.Int("calibration.calibrated", entry.CalibratedAnalyses),
		attribute.Float64("calibration.rate", entry.CalibrationRate),
	)
	w.logger.Info("calibration task finished",
		"trigger", payload.Trigger,
		"total_analyses", entry.TotalAnalyses,
		"calibrated_analyses", entry.CalibratedAnalyses,
		"average_accuracy", entry.AverageAccuracy,
	)
	return nil
}
