package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zombar/newscheck/internal/models"
)

// AnalysisLookup resolves the analysis a feedback record refers to
type AnalysisLookup interface {
	GetAnalysis(ctx context.Context, id string) (*models.Analysis, error)
}

// feedbackRow is one entry of the feedback file read by the retrain script
type feedbackRow struct {
	models.FeedbackRecord
	Title  string `json:"title"`
	Body   string `json:"body"`
	Source string `json:"source"`
}

// datasetRow is one entry of the reference dataset read by the training script
type datasetRow struct {
	Source string `json:"fuente"`
	Title  string `json:"titulo"`
	Body   string `json:"cuerpo"`
	Label  string `json:"etiqueta"`
}

// CommandRetrainer writes feedback to FeedbackPath and runs the retrain script
type CommandRetrainer struct {
	cmd          Command
	feedbackPath string
	analyses     AnalysisLookup
	logger       *slog.Logger
}

// NewCommandRetrainer creates a retrainer. analyses may be nil, in which case
// feedback rows carry no article text.
func NewCommandRetrainer(cmd Command, feedbackPath string, analyses AnalysisLookup) *CommandRetrainer {
	return &CommandRetrainer{
		cmd:          cmd,
		feedbackPath: feedbackPath,
		analyses:     analyses,
		logger:       slog.Default(),
	}
}

// Retrain exports records and runs the script, returning its output
func (r *CommandRetrainer) Retrain(ctx context.Context, records []models.FeedbackRecord) (string, error) {
	rows := make([]feedbackRow, 0, len(records))
	for _, rec := range records {
		row := feedbackRow{FeedbackRecord: rec}
		if r.analyses != nil && rec.AnalysisID != "" {
			if a, err := r.analyses.GetAnalysis(ctx, rec.AnalysisID); err == nil {
				row.Title, row.Body, row.Source = a.Title, a.Body, a.Source
			} else {
				r.logger.Warn("feedback refers to unknown analysis", "analysis_id", rec.AnalysisID, "error", err)
			}
		}
		rows = append(rows, row)
	}

	if err := writeJSON(r.feedbackPath, rows); err != nil {
		return "", fmt.Errorf("failed to write feedback file: %w", err)
	}

	r.logger.Info("running retrain command", "command", r.cmd.String(), "feedback_count", len(rows))
	res, err := r.cmd.run(ctx, nil)
	if err != nil {
		return combinedOutput(res), err
	}
	return res.stdout, nil
}

// Trainer runs a full training over the reference corpus
type Trainer struct {
	cmd         Command
	datasetPath string
	logger      *slog.Logger
}

// NewTrainer creates a trainer that exports the corpus to datasetPath first
func NewTrainer(cmd Command, datasetPath string) *Trainer {
	return &Trainer{cmd: cmd, datasetPath: datasetPath, logger: slog.Default()}
}

// Train exports corpus and runs the training script, returning its report
func (t *Trainer) Train(ctx context.Context, corpus []models.ReferenceArticle) (string, error) {
	rows := make([]datasetRow, 0, len(corpus))
	for _, ref := range corpus {
		rows = append(rows, datasetRow{Source: ref.Source, Title: ref.Title, Body: ref.Body, Label: ref.Label})
	}

	if err := writeJSON(t.datasetPath, rows); err != nil {
		return "", fmt.Errorf("failed to write dataset file: %w", err)
	}

	t.logger.Info("running training command", "command", t.cmd.String(), "articles", len(rows))
	res, err := t.cmd.run(ctx, nil)
	if err != nil {
		return combinedOutput(res), err
	}
	return res.stdout, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func combinedOutput(res runResult) string {
	return strings.TrimSpace(strings.Join([]string{res.stdout, res.stderr}, "\n"))
}
