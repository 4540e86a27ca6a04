package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zombar/newscheck/internal/calibration"
	"github.com/zombar/newscheck/internal/database"
	"github.com/zombar/newscheck/internal/feedback"
	"github.com/zombar/newscheck/internal/models"
	"github.com/zombar/newscheck/internal/tracing"
	"github.com/zombar/newscheck/internal/verifier"
	"github.com/zombar/newscheck/pkg/logging"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
	defaultMaxUpload    = 32 << 20
)

// Analyzer runs the verification pipeline
type Analyzer interface {
	Analyze(ctx context.Context, article models.Article) (*verifier.Result, error)
}

// RetrainQueue hands manual retrains to the background worker
type RetrainQueue interface {
	EnqueueRetrain(ctx context.Context, trigger string) (string, error)
}

// Trainer retrains the local classifier from the reference corpus
type Trainer interface {
	Train(ctx context.Context, corpus []models.ReferenceArticle) (string, error)
}

// Config wires the handler to its collaborators
type Config struct {
	DB          *database.DB
	Analyzer    Analyzer
	Trigger     *feedback.Trigger
	Launcher    feedback.Launcher
	Trainer     Trainer
	Calibration *calibration.Service
	// RetrainQueue, when set, receives manual retrains instead of Trigger
	RetrainQueue RetrainQueue
	// JudgeName describes the configured LLM; empty means none
	JudgeName string
	// Gatherer backs /metrics; nil uses the default registry
	Gatherer       prometheus.Gatherer
	CORSOrigins    []string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Handler handles HTTP requests
type Handler struct {
	cfg     Config
	mux     *http.ServeMux
	logger  *slog.Logger
	started time.Time
}

// NewHandler creates a new API handler with CORS support and metrics
func NewHandler(cfg Config) http.Handler {
	h := newHandler(cfg)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(h.mux)
}

func newHandler(cfg Config) *Handler {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.Launcher == nil && cfg.Trigger != nil {
		cfg.Launcher = cfg.Trigger
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		logger:  logger,
		started: time.Now(),
	}
	h.setupRoutes()
	return h
}

// setupRoutes configures all API routes
func (h *Handler) setupRoutes() {
	h.mux.Handle("GET /metrics", promhttp.HandlerFor(h.cfg.Gatherer, promhttp.HandlerOpts{}))
	h.mux.HandleFunc("GET /health", h.handleHealth)

	h.mux.HandleFunc("POST /api/analyze", h.handleAnalyze)
	h.mux.HandleFunc("GET /api/history", h.handleHistory)
	h.mux.HandleFunc("GET /api/analyses/{id}", h.handleGetAnalysis)
	h.mux.HandleFunc("GET /api/export/csv", h.handleExportCSV)

	h.mux.HandleFunc("POST /api/feedback", h.handleFeedback)
	h.mux.HandleFunc("POST /api/retrain", h.handleRetrain)
	h.mux.HandleFunc("POST /api/train", h.handleTrain)

	h.mux.HandleFunc("POST /api/datasets", h.handleUploadDataset)
	h.mux.HandleFunc("POST /api/calibrate", h.handleCalibrate)
	h.mux.HandleFunc("GET /api/calibration-logs", h.handleCalibrationLogs)
}

// handleHealth reports liveness, database reachability and row counts
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	resp := map[string]any{
		"ok":             true,
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"time":           time.Now().UTC().Format(time.RFC3339),
		"llm": map[string]any{
			"configured": h.cfg.JudgeName != "",
			"name":       h.cfg.JudgeName,
		},
	}

	if err := h.cfg.DB.Ping(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		resp["ok"] = false
		resp["status"] = "degraded"
		resp["database"] = map[string]any{"error": err.Error()}
	} else if stats, err := h.cfg.DB.GetStats(r.Context()); err == nil {
		resp["database"] = map[string]any{
			"analyses":           stats.Analyses,
			"feedback":           stats.Feedback,
			"reference_articles": stats.ReferenceArticles,
			"calibration_runs":   stats.CalibrationRuns,
		}
	}

	respondJSON(w, resp, status)
}

// handleAnalyze verifies a submitted article synchronously
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var article models.Article
	if err := json.NewDecoder(r.Body).Decode(&article); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tracing.SetSpanAttributes(r.Context(),
		attribute.Int("article.title_length", len(article.Title)),
		attribute.Int("article.body_length", len(article.Body)),
		attribute.String("article.source", article.Source),
	)

	result, err := h.cfg.Analyzer.Analyze(r.Context(), article)
	if errors.Is(err, verifier.ErrEmptyArticle) {
		respondError(w, "title or body is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.serverError(w, r, "Analysis failed", err)
		return
	}

	respondJSON(w, map[string]any{
		"ok":     true,
		"result": result,
		"saved":  result.Saved,
	}, http.StatusOK)
}

// handleHistory lists past analyses, optionally filtered by a search term
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = min(l, maxHistoryLimit)
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	var (
		items []models.Analysis
		err   error
	)
	if query == "" {
		items, err = h.cfg.DB.ListAnalyses(r.Context(), limit, 0)
	} else {
		items, err = h.cfg.DB.SearchAnalyses(r.Context(), query, limit)
	}
	if err != nil {
		h.serverError(w, r, "Could not read history", err)
		return
	}

	respondJSON(w, map[string]any{
		"ok":    true,
		"items": items,
		"total": len(items),
	}, http.StatusOK)
}

// handleGetAnalysis retrieves a specific analysis
func (h *Handler) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.cfg.DB.GetAnalysis(r.Context(), r.PathValue("id"))
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, "Analysis not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.serverError(w, r, "Could not read analysis", err)
		return
	}
	respondJSON(w, analysis, http.StatusOK)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, map[string]any{
		"ok":    false,
		"error": message,
	}, statusCode)
}

// serverError logs err with trace context and hides it from the client
func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, message string, err error) {
	logging.HTTPErrorLogger(h.logger, http.StatusInternalServerError, fmt.Errorf("%s: %w", message, err), r)
	respondError(w, message, http.StatusInternalServerError)
}
