package calibration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zombar/newscheck/internal/metrics"
	"github.com/zombar/newscheck/internal/models"
)

const (
	// DefaultRecentLimit is how many recent analyses a run considers
	DefaultRecentLimit = 50
	// DisplayedLogs caps the log entries returned for display
	DisplayedLogs = 10
)

// Store is the persistence a calibration run reads from and appends to
type Store interface {
	RecentAnalyses(ctx context.Context, limit int) ([]models.Analysis, error)
	ListReferenceArticles(ctx context.Context) ([]models.ReferenceArticle, error)
	AppendCalibrationLog(ctx context.Context, entry *models.CalibrationLogEntry) error
	ListCalibrationLogs(ctx context.Context, limit int) ([]models.CalibrationLogEntry, error)
}

// Service orchestrates calibration runs against the store
type Service struct {
	store       Store
	recentLimit int
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a calibration service. A recentLimit <= 0 uses DefaultRecentLimit.
func NewService(store Store, recentLimit int, m *metrics.Metrics) *Service {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	return &Service{
		store:       store,
		recentLimit: recentLimit,
		metrics:     m,
		logger:      slog.Default(),
		now:         time.Now,
	}
}

// Calibrate runs one calibration pass and appends its log entry.
// Only reading recent analyses or writing the log can fail; an unreadable
// reference corpus is treated as empty.
func (s *Service) Calibrate(ctx context.Context) (models.CalibrationLogEntry, error) {
	s.logger.Info("starting calibration", "recent_limit", s.recentLimit)

	recent, err := s.store.RecentAnalyses(ctx, s.recentLimit)
	if err != nil {
		return models.CalibrationLogEntry{}, fmt.Errorf("failed to load recent analyses: %w", err)
	}

	corpus, err := s.store.ListReferenceArticles(ctx)
	if err != nil {
		s.logger.Warn("reference corpus unavailable, calibrating without matches", "error", err)
		corpus = nil
	}

	entry := Run(recent, corpus, s.now())

	if err := s.store.AppendCalibrationLog(ctx, &entry); err != nil {
		return entry, fmt.Errorf("failed to append calibration log: %w", err)
	}

	s.metrics.Calibration(entry.CalibrationRate, entry.AverageAccuracy)
	s.logger.Info("calibration completed",
		"total_analyses", entry.TotalAnalyses,
		"calibrated_analyses", entry.CalibratedAnalyses,
		"calibration_rate", entry.CalibrationRate,
		"average_accuracy", entry.AverageAccuracy,
		"reference_articles", len(corpus),
	)

	return entry, nil
}

// Logs returns the most recent calibration log entries, newest first
func (s *Service) Logs(ctx context.Context) ([]models.CalibrationLogEntry, error) {
	logs, err := s.store.ListCalibrationLogs(ctx, DisplayedLogs)
	if err != nil {
		return nil, fmt.Errorf("failed to list calibration logs: %w", err)
	}
	return logs, nil
}
