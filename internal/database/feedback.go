package database

import (
	"context"
	"fmt"
	"time"

	"github.com/zombar/newscheck/internal/models"
)

// SaveFeedback appends a user correction and sets its ID
func (db *DB) SaveFeedback(ctx context.Context, record *models.FeedbackRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO feedback (analysis_id, original_score, correct_score, original_verdict, correct_verdict, user_feedback, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		record.AnalysisID, record.OriginalScore, record.CorrectScore,
		record.OriginalVerdict, record.CorrectVerdict, record.UserFeedback,
		record.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read feedback id: %w", err)
	}
	record.ID = id
	return nil
}

// CountFeedback returns the number of feedback records
func (db *DB) CountFeedback(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM feedback`); err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return n, nil
}

// ListFeedback returns all feedback records oldest first
func (db *DB) ListFeedback(ctx context.Context) ([]models.FeedbackRecord, error) {
	records := []models.FeedbackRecord{}
	err := db.conn.SelectContext(ctx, &records, `
		SELECT id, analysis_id, original_score, correct_score, original_verdict, correct_verdict, user_feedback, timestamp
		FROM feedback
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	for i := range records {
		records[i].Timestamp = records[i].Timestamp.UTC()
	}
	return records, nil
}
