// Package feedback accumulates user corrections and decides when the local
// classifier should be retrained with them.
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/zombar/newscheck/internal/metrics"
	"github.com/zombar/newscheck/internal/models"
)

// DefaultThreshold is the feedback count at which retraining is requested
const DefaultThreshold = 3

// Store persists feedback records
type Store interface {
	SaveFeedback(ctx context.Context, record *models.FeedbackRecord) error
	CountFeedback(ctx context.Context) (int, error)
	ListFeedback(ctx context.Context) ([]models.FeedbackRecord, error)
}

// Retrainer retrains the local classifier with the given feedback.
// It returns the raw output of the training run.
type Retrainer interface {
	Retrain(ctx context.Context, records []models.FeedbackRecord) (string, error)
}

// Launcher dispatches a retrain without waiting for it
type Launcher interface {
	LaunchRetrain(ctx context.Context) error
}

// Trigger records feedback and runs at most one retrain at a time
type Trigger struct {
	store     Store
	retrainer Retrainer
	threshold int
	inFlight  *semaphore.Weighted
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewTrigger creates a trigger. A threshold <= 0 uses DefaultThreshold.
func NewTrigger(store Store, retrainer Retrainer, threshold int, m *metrics.Metrics) *Trigger {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Trigger{
		store:     store,
		retrainer: retrainer,
		threshold: threshold,
		inFlight:  semaphore.NewWeighted(1),
		metrics:   m,
		logger:    slog.Default(),
		now:       time.Now,
	}
}

// Threshold returns the feedback count that requests a retrain
func (t *Trigger) Threshold() int {
	return t.threshold
}

// RecordFeedback persists a record and reports whether the persisted total
// has reached the retrain threshold. The count is never reset.
func (t *Trigger) RecordFeedback(ctx context.Context, record *models.FeedbackRecord) (persisted bool, shouldRetrain bool, count int, err error) {
	if record.Timestamp.IsZero() {
		record.Timestamp = t.now().UTC()
	}

	if err := t.store.SaveFeedback(ctx, record); err != nil {
		return false, false, 0, fmt.Errorf("failed to save feedback: %w", err)
	}
	t.metrics.Feedback()

	count, err = t.store.CountFeedback(ctx)
	if err != nil {
		return true, false, 0, fmt.Errorf("failed to count feedback: %w", err)
	}

	shouldRetrain = count >= t.threshold
	t.logger.Info("feedback recorded",
		"analysis_id", record.AnalysisID,
		"feedback_count", count,
		"should_retrain", shouldRetrain,
	)
	return true, shouldRetrain, count, nil
}

// RetrainNow retrains synchronously when enough feedback exists.
// Concurrent callers get ReasonAlreadyRunning instead of a second run.
// Failures are reported in the result, never returned or panicked.
func (t *Trigger) RetrainNow(ctx context.Context) (result models.RetrainResult) {
	if !t.inFlight.TryAcquire(1) {
		t.logger.Info("retrain already running, skipping")
		t.metrics.Retrain(models.ReasonAlreadyRunning)
		return models.RetrainResult{Reason: models.ReasonAlreadyRunning}
	}
	defer t.inFlight.Release(1)

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("retrain panicked", "panic", r)
			result = models.RetrainResult{Reason: models.ReasonException, Error: fmt.Sprint(r)}
		}
		if result.Trained {
			t.metrics.Retrain("trained")
		} else {
			t.metrics.Retrain(result.Reason)
		}
	}()

	records, err := t.store.ListFeedback(ctx)
	if err != nil {
		t.logger.Error("failed to read feedback for retrain", "error", err)
		return models.RetrainResult{Reason: models.ReasonException, Error: err.Error()}
	}

	count := len(records)
	if count == 0 {
		t.logger.Info("no feedback recorded, retrain skipped")
		return models.RetrainResult{Reason: models.ReasonNoFeedbackFile}
	}
	if count < t.threshold {
		t.logger.Info("insufficient feedback for retrain", "feedback_count", count, "threshold", t.threshold)
		return models.RetrainResult{FeedbackCount: count, Reason: models.ReasonInsufficientFeedback}
	}

	t.logger.Info("retraining classifier with feedback", "feedback_count", count)
	start := time.Now()
	// Once started, a retrain runs to completion regardless of the caller
	output, err := t.retrainer.Retrain(context.WithoutCancel(ctx), records)
	if err != nil {
		t.logger.Error("retrain failed", "error", err, "feedback_count", count)
		return models.RetrainResult{
			FeedbackCount: count,
			Output:        output,
			Reason:        models.ReasonTrainingFailed,
			Error:         err.Error(),
		}
	}

	t.logger.Info("retrain completed", "feedback_count", count, "duration_ms", time.Since(start).Milliseconds())
	return models.RetrainResult{Trained: true, FeedbackCount: count, Output: output}
}

// LaunchRetrain starts RetrainNow in the background, detached from ctx
// cancellation so the caller can return immediately.
func (t *Trigger) LaunchRetrain(ctx context.Context) error {
	bg := context.WithoutCancel(ctx)
	go func() {
		result := t.RetrainNow(bg)
		if !result.Trained {
			t.logger.Info("background retrain finished without training", "reason", result.Reason)
		}
	}()
	return nil
}
