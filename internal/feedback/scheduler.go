package feedback

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/zombar/newscheck/internal/models"
)

// DefaultRetrainSchedule re-checks the retrain condition hourly
const DefaultRetrainSchedule = "@every 1h"

// Calibrator runs one calibration pass
type Calibrator interface {
	Calibrate(ctx context.Context) (models.CalibrationLogEntry, error)
}

// Scheduler runs the periodic retrain check and, optionally, calibration
type Scheduler struct {
	cron       *cron.Cron
	trigger    *Trigger
	calibrator Calibrator
	logger     *slog.Logger
}

// NewScheduler registers the retrain check on retrainSpec and, when both
// calibrator and calibrationSpec are set, a calibration job. Specs accept
// standard 5-field expressions and descriptors such as "@every 30m".
func NewScheduler(trigger *Trigger, retrainSpec string, calibrator Calibrator, calibrationSpec string) (*Scheduler, error) {
	if retrainSpec == "" {
		retrainSpec = DefaultRetrainSchedule
	}

	s := &Scheduler{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		trigger:    trigger,
		calibrator: calibrator,
		logger:     slog.Default(),
	}

	if _, err := s.cron.AddFunc(retrainSpec, func() { s.CheckRetrain(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid retrain schedule %q: %w", retrainSpec, err)
	}

	if calibrator != nil && calibrationSpec != "" {
		if _, err := s.cron.AddFunc(calibrationSpec, func() { s.RunCalibration(context.Background()) }); err != nil {
			return nil, fmt.Errorf("invalid calibration schedule %q: %w", calibrationSpec, err)
		}
	}

	return s, nil
}

// Start begins running jobs in the background
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs or ctx expiry
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CheckRetrain retrains when enough feedback has accumulated.
// Insufficient feedback is logged and otherwise ignored.
func (s *Scheduler) CheckRetrain(ctx context.Context) models.RetrainResult {
	result := s.trigger.RetrainNow(ctx)
	switch {
	case result.Trained:
		s.logger.Info("periodic retrain completed", "feedback_count", result.FeedbackCount)
	case result.Reason == models.ReasonTrainingFailed || result.Reason == models.ReasonException:
		s.logger.Error("periodic retrain failed", "reason", result.Reason, "error", result.Error)
	default:
		s.logger.Debug("periodic retrain skipped", "reason", result.Reason, "feedback_count", result.FeedbackCount)
	}
	return result
}

// RunCalibration runs one scheduled calibration pass
func (s *Scheduler) RunCalibration(ctx context.Context) {
	if s.calibrator == nil {
		return
	}
	if _, err := s.calibrator.Calibrate(ctx); err != nil {
		s.logger.Error("scheduled calibration failed", "error", err)
	}
}
