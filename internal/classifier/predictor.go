package classifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/zombar/newscheck/internal/models"
)

// Fallback verdicts reported when the local model cannot answer
const (
	VerdictError      = "error"
	VerdictErrorParse = "error_parse"

	FallbackMethod = "llm_only_fallback"
)

// Prediction is the local model answer
type Prediction struct {
	ML                 models.MLResult `json:"ml_analysis"`
	FinalVerdict       string          `json:"final_verdict,omitempty"`
	CombinedConfidence *float64        `json:"combined_confidence,omitempty"`
	AnalysisMethod     string          `json:"analysis_method,omitempty"`
}

// Classifier predicts a verdict for an article given the LLM judgment
type Classifier interface {
	Predict(ctx context.Context, article models.Article, judgment models.Judgment) Prediction
}

type predictRequest struct {
	NewsData      models.Article `json:"news_data"`
	GeminiScore   float64        `json:"gemini_score"`
	GeminiVerdict string         `json:"gemini_verdict"`
}

// Predictor runs the prediction script, sending the article and LLM
// judgment as JSON on stdin and reading a Prediction from stdout
type Predictor struct {
	cmd    Command
	logger *slog.Logger
}

// NewPredictor creates a predictor running cmd
func NewPredictor(cmd Command) *Predictor {
	return &Predictor{cmd: cmd, logger: slog.Default()}
}

// Predict never fails: a crashed script or unreadable output yields a
// fallback that mirrors the LLM score with neutral confidence.
func (p *Predictor) Predict(ctx context.Context, article models.Article, judgment models.Judgment) Prediction {
	payload, err := json.Marshal(predictRequest{
		NewsData:      article,
		GeminiScore:   judgment.Score,
		GeminiVerdict: judgment.Verdict,
	})
	if err != nil {
		p.logger.Error("failed to encode prediction payload", "error", err)
		return Fallback(VerdictError, judgment)
	}

	res, err := p.cmd.run(ctx, payload)
	if err != nil {
		p.logger.Error("local classifier failed", "command", p.cmd.String(), "error", err, "stderr", res.stderr)
		return Fallback(VerdictError, judgment)
	}

	var pred Prediction
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.stdout)), &pred); err != nil {
		p.logger.Error("failed to parse local classifier output", "error", err, "stdout", res.stdout)
		return Fallback(VerdictErrorParse, judgment)
	}

	p.logger.Debug("local classifier prediction",
		"ml_verdict", pred.ML.Verdict,
		"analysis_method", pred.AnalysisMethod,
	)
	return pred
}

// Fallback is the prediction used when the local model cannot answer
func Fallback(verdict string, judgment models.Judgment) Prediction {
	score := judgment.Score
	confidence := 0.5
	accuracy := 0.0
	combined := judgment.Score / 100

	return Prediction{
		ML: models.MLResult{
			Verdict:       verdict,
			Score:         &score,
			Confidence:    &confidence,
			FeaturesUsed:  0,
			ModelAccuracy: &accuracy,
		},
		FinalVerdict:       judgment.Verdict,
		CombinedConfidence: &combined,
		AnalysisMethod:     FallbackMethod,
	}
}
