// Package verifier runs the full credibility pipeline for one article:
// LLM judgment, local prediction, fusion, explanation and persistence.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zombar/newscheck/internal/classifier"
	"github.com/zombar/newscheck/internal/explain"
	"github.com/zombar/newscheck/internal/llm"
	"github.com/zombar/newscheck/internal/metrics"
	"github.com/zombar/newscheck/internal/models"
	"github.com/zombar/newscheck/internal/verdict"
)

// Method identifies the fusion strategy in results
const Method = "rules_engine_llm_local_ml"

// ErrEmptyArticle is returned when an article has neither title nor body
var ErrEmptyArticle = errors.New("title or body is required")

// Store persists analyses
type Store interface {
	SaveAnalysis(ctx context.Context, analysis *models.Analysis) error
}

// Final is the fused verdict as presented to clients
type Final struct {
	Verdict     models.Verdict `json:"verdict"`
	Score       int            `json:"score"`
	Confidence  float64        `json:"confidence"`
	Flags       []string       `json:"flags"`
	Explanation string         `json:"explanation"`
	Method      string         `json:"method"`
}

// Saved describes the persisted record
type Saved struct {
	ID             string `json:"id"`
	TotalLatencyMS int64  `json:"total_latency"`
	LLMLatencyMS   int64  `json:"llm_latency"`
}

// Result is the outcome of one analysis
type Result struct {
	LLM          models.Judgment    `json:"llm"`
	ML           models.MLResult    `json:"ml"`
	Final        Final              `json:"final"`
	Explanations models.Explanation `json:"explanations"`
	Saved        Saved              `json:"saved"`
}

// Verifier orchestrates an analysis
type Verifier struct {
	judge      llm.Judge
	classifier classifier.Classifier
	store      Store
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Verifier. judge may be nil, in which case every analysis
// uses the neutral default judgment.
func New(judge llm.Judge, cls classifier.Classifier, store Store, m *metrics.Metrics) *Verifier {
	return &Verifier{
		judge:      judge,
		classifier: cls,
		store:      store,
		metrics:    m,
		logger:     slog.Default(),
		now:        time.Now,
	}
}

// Analyze verifies an article and persists the result
func (v *Verifier) Analyze(ctx context.Context, article models.Article) (*Result, error) {
	article.Title = strings.TrimSpace(article.Title)
	article.Body = strings.TrimSpace(article.Body)
	article.Source = strings.TrimSpace(article.Source)
	if article.Title == "" && article.Body == "" {
		return nil, ErrEmptyArticle
	}

	start := time.Now()
	ctx, span := otel.Tracer("newscheck").Start(ctx, "verifier.analyze")
	defer span.End()
	span.SetAttributes(
		attribute.Int("article.title_length", len(article.Title)),
		attribute.Int("article.body_length", len(article.Body)),
		attribute.String("article.source", article.Source),
	)

	judgment := v.judgeArticle(ctx, article)
	prediction := v.classifier.Predict(ctx, article, judgment)

	fused := verdict.Fuse(
		models.ClassifierOutput{Verdict: judgment.Verdict, Score: &judgment.Score},
		models.ClassifierOutput{Verdict: prediction.ML.Verdict, Score: prediction.ML.Score, Confidence: prediction.ML.Confidence},
	)
	for _, flag := range fused.Flags {
		v.metrics.FusionRule(flag)
	}

	explanation := explain.Explain(fused.FinalScore, fused.FinalVerdict, judgment.Labels)
	explanation.DetailedHTML = explain.RenderHTML(explanation.Detailed)

	method := prediction.AnalysisMethod
	if method == "" {
		method = "local_ml"
	}

	result := &Result{
		LLM: judgment,
		ML:  prediction.ML,
		Final: Final{
			Verdict:     fused.FinalVerdict,
			Score:       fused.FinalScore,
			Confidence:  combinedConfidence(prediction, judgment, fused),
			Flags:       fused.Flags,
			Explanation: fmt.Sprintf("Análisis combinado por reglas: %s + ML local (%s)", judgeLabel(judgment), method),
			Method:      Method,
		},
		Explanations: explanation,
	}

	analysis := &models.Analysis{
		ID:          uuid.New().String(),
		Source:      article.Source,
		Title:       article.Title,
		Body:        article.Body,
		Score:       float64(fused.FinalScore),
		Verdict:     string(fused.FinalVerdict),
		Labels:      judgment.Labels,
		Rationale:   judgment.Rationale,
		Evidence:    judgment.Evidence,
		LLMScore:    judgment.Score,
		MLScore:     prediction.ML.Score,
		MLVerdict:   prediction.ML.Verdict,
		Flags:       fused.Flags,
		Explanation: explanation,
		Model:       judgeLabel(judgment) + " + " + method,
		LatencyMS:   time.Since(start).Milliseconds(),
		CreatedAt:   v.now().UTC(),
	}

	if err := v.store.SaveAnalysis(ctx, analysis); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		v.metrics.ObserveAnalysis(ctx, string(fused.FinalVerdict), "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to save analysis: %w", err)
	}

	result.Saved = Saved{
		ID:             analysis.ID,
		TotalLatencyMS: time.Since(start).Milliseconds(),
		LLMLatencyMS:   judgment.LatencyMS,
	}

	span.SetAttributes(
		attribute.String("analysis.id", analysis.ID),
		attribute.String("analysis.verdict", string(fused.FinalVerdict)),
		attribute.Int("analysis.score", fused.FinalScore),
		attribute.StringSlice("analysis.flags", fused.Flags),
	)
	v.metrics.ObserveAnalysis(ctx, string(fused.FinalVerdict), "success", time.Since(start).Seconds())

	v.logger.Info("analysis completed",
		"analysis_id", analysis.ID,
		"verdict", fused.FinalVerdict,
		"score", fused.FinalScore,
		"flags", fused.Flags,
		"latency_ms", result.Saved.TotalLatencyMS,
	)
	return result, nil
}

// judgeArticle asks the external judge, substituting the neutral default on failure
func (v *Verifier) judgeArticle(ctx context.Context, article models.Article) models.Judgment {
	if v.judge == nil {
		v.metrics.LLMFallback()
		return llm.DefaultJudgment()
	}

	judgment, err := v.judge.Judge(ctx, article)
	if err != nil {
		v.logger.Warn("llm judgment failed, using neutral default", "provider", v.judge.Name(), "error", err)
		v.metrics.LLMFallback()
		return llm.DefaultJudgment()
	}
	return judgment
}

func combinedConfidence(p classifier.Prediction, j models.Judgment, fused models.FusionResult) float64 {
	if p.CombinedConfidence != nil && !math.IsNaN(*p.CombinedConfidence) {
		return *p.CombinedConfidence
	}
	return math.Max(j.Score/100, fused.ML.Confidence)
}

func judgeLabel(j models.Judgment) string {
	if j.Provider == "" {
		return "sin LLM"
	}
	if j.Model == "" {
		return j.Provider
	}
	return j.Provider + "-" + j.Model
}
