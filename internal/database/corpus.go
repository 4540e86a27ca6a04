package database

import (
	"context"
	"fmt"
	"time"

	"github.com/zombar/newscheck/internal/models"
)

// InsertReferenceArticles stores labeled articles, ignoring any whose
// title and source are already present. It returns the number inserted.
func (db *DB) InsertReferenceArticles(ctx context.Context, articles []models.ReferenceArticle) (int, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT OR IGNORE INTO reference_articles (source, title, body, label, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	for _, a := range articles {
		created := a.CreatedAt
		if created.IsZero() {
			created = now
		}
		res, err := stmt.ExecContext(ctx, a.Source, a.Title, a.Body, a.Label, created.UTC())
		if err != nil {
			return 0, fmt.Errorf("failed to insert reference article: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

// ListReferenceArticles returns the whole calibration corpus in insertion order
func (db *DB) ListReferenceArticles(ctx context.Context) ([]models.ReferenceArticle, error) {
	articles := []models.ReferenceArticle{}
	err := db.conn.SelectContext(ctx, &articles, `
		SELECT id, source, title, body, label, created_at
		FROM reference_articles
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reference articles: %w", err)
	}
	return articles, nil
}

// CountReferenceArticles returns the size of the calibration corpus
func (db *DB) CountReferenceArticles(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM reference_articles`); err != nil {
		return 0, fmt.Errorf("failed to count reference articles: %w", err)
	}
	return n, nil
}
