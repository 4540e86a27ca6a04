package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zombar/newscheck/internal/models"
)

type calibrationLogRow struct {
	ID                 int64     `db:"id"`
	Timestamp          time.Time `db:"timestamp"`
	TotalAnalyses      int       `db:"total_analyses"`
	CalibratedAnalyses int       `db:"calibrated_analyses"`
	CalibrationRate    float64   `db:"calibration_rate"`
	AverageAccuracy    float64   `db:"average_accuracy"`
	Results            string    `db:"results"`
}

// AppendCalibrationLog stores the outcome of a calibration run and sets its ID
func (db *DB) AppendCalibrationLog(ctx context.Context, entry *models.CalibrationLogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	results, err := encodeJSON(entry.Results, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal calibration results: %w", err)
	}

	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO calibration_logs (timestamp, total_analyses, calibrated_analyses, calibration_rate, average_accuracy, results)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		entry.Timestamp.UTC(), entry.TotalAnalyses, entry.CalibratedAnalyses,
		entry.CalibrationRate, entry.AverageAccuracy, results,
	)
	if err != nil {
		return fmt.Errorf("failed to insert calibration log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read calibration log id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListCalibrationLogs returns up to limit calibration runs, newest first
func (db *DB) ListCalibrationLogs(ctx context.Context, limit int) ([]models.CalibrationLogEntry, error) {
	var rows []calibrationLogRow
	err := db.conn.SelectContext(ctx, &rows, `
		SELECT id, timestamp, total_analyses, calibrated_analyses, calibration_rate, average_accuracy, results
		FROM calibration_logs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list calibration logs: %w", err)
	}

	entries := make([]models.CalibrationLogEntry, 0, len(rows))
	for _, r := range rows {
		entry := models.CalibrationLogEntry{
			ID:                 r.ID,
			Timestamp:          r.Timestamp.UTC(),
			TotalAnalyses:      r.TotalAnalyses,
			CalibratedAnalyses: r.CalibratedAnalyses,
			CalibrationRate:    r.CalibrationRate,
			AverageAccuracy:    r.AverageAccuracy,
		}
		if err := json.Unmarshal([]byte(r.Results), &entry.Results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal calibration results: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Stats reports row counts for the metrics collector
type Stats struct {
	Analyses          int
	Feedback          int
	ReferenceArticles int
	CalibrationRuns   int
}

// GetStats returns row counts across all tables
func (db *DB) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	err := db.conn.QueryRowxContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM analyses),
			(SELECT COUNT(*) FROM feedback),
			(SELECT COUNT(*) FROM reference_articles),
			(SELECT COUNT(*) FROM calibration_logs)
	`).Scan(&s.Analyses, &s.Feedback, &s.ReferenceArticles, &s.CalibrationRuns)
	if err != nil {
		return s, fmt.Errorf("failed to get stats: %w", err)
	}
	return s, nil
}
