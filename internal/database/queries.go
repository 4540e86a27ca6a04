package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zombar/newscheck/internal/models"
)

// analysisRow carries the JSON-encoded columns of an analysis
type analysisRow struct {
	models.Analysis
	LabelsJSON      string `db:"labels"`
	EvidenceJSON    string `db:"evidence"`
	FlagsJSON       string `db:"flags"`
	ExplanationJSON string `db:"explanation"`
}

func (r *analysisRow) decode() (models.Analysis, error) {
	a := r.Analysis
	if err := json.Unmarshal([]byte(r.LabelsJSON), &a.Labels); err != nil {
		return a, fmt.Errorf("failed to unmarshal labels: %w", err)
	}
	if err := json.Unmarshal([]byte(r.EvidenceJSON), &a.Evidence); err != nil {
		return a, fmt.Errorf("failed to unmarshal evidence: %w", err)
	}
	if err := json.Unmarshal([]byte(r.FlagsJSON), &a.Flags); err != nil {
		return a, fmt.Errorf("failed to unmarshal flags: %w", err)
	}
	if err := json.Unmarshal([]byte(r.ExplanationJSON), &a.Explanation); err != nil {
		return a, fmt.Errorf("failed to unmarshal explanation: %w", err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

func encodeJSON(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

const analysisColumns = `id, source, title, body, score, verdict, labels, rationale, evidence,
	llm_score, ml_score, ml_verdict, flags, explanation, model, latency_ms, created_at`

// SaveAnalysis saves an analysis to the database
func (db *DB) SaveAnalysis(ctx context.Context, analysis *models.Analysis) error {
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = time.Now().UTC()
	}

	labels, err := encodeJSON(analysis.Labels, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}
	evidence, err := encodeJSON(analysis.Evidence, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}
	flags, err := encodeJSON(analysis.Flags, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal flags: %w", err)
	}
	explanation, err := encodeJSON(analysis.Explanation, "{}")
	if err != nil {
		return fmt.Errorf("failed to marshal explanation: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO analyses (`+analysisColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		analysis.ID, analysis.Source, analysis.Title, analysis.Body,
		analysis.Score, analysis.Verdict, labels, analysis.Rationale, evidence,
		analysis.LLMScore, analysis.MLScore, analysis.MLVerdict, flags, explanation,
		analysis.Model, analysis.LatencyMS, analysis.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	return nil
}

// GetAnalysis retrieves an analysis by ID
func (db *DB) GetAnalysis(ctx context.Context, id string) (*models.Analysis, error) {
	var row analysisRow
	err := db.conn.GetContext(ctx, &row, `SELECT `+analysisColumns+` FROM analyses WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	analysis, err := row.decode()
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// ListAnalyses retrieves analyses newest first with pagination
func (db *DB) ListAnalyses(ctx context.Context, limit, offset int) ([]models.Analysis, error) {
	return db.selectAnalyses(ctx, `
		SELECT `+analysisColumns+` FROM analyses
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
}

// RecentAnalyses returns the most recent analyses
func (db *DB) RecentAnalyses(ctx context.Context, limit int) ([]models.Analysis, error) {
	return db.ListAnalyses(ctx, limit, 0)
}

// SearchAnalyses finds analyses whose title, body or source contain query
func (db *DB) SearchAnalyses(ctx context.Context, query string, limit int) ([]models.Analysis, error) {
	pattern := "%" + query + "%"
	return db.selectAnalyses(ctx, `
		SELECT `+analysisColumns+` FROM analyses
		WHERE title LIKE ? OR body LIKE ? OR source LIKE ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, pattern, pattern, pattern, limit)
}

// AllAnalyses returns every analysis oldest first
func (db *DB) AllAnalyses(ctx context.Context) ([]models.Analysis, error) {
	return db.selectAnalyses(ctx, `SELECT `+analysisColumns+` FROM analyses ORDER BY created_at ASC, rowid ASC`)
}

// CountAnalyses returns the number of stored analyses
func (db *DB) CountAnalyses(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM analyses`); err != nil {
		return 0, fmt.Errorf("failed to count analyses: %w", err)
	}
	return n, nil
}

func (db *DB) selectAnalyses(ctx context.Context, query string, args ...any) ([]models.Analysis, error) {
	var rows []analysisRow
	if err := db.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}

	analyses := make([]models.Analysis, 0, len(rows))
	for i := range rows {
		a, err := rows[i].decode()
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	return analyses, nil
}
