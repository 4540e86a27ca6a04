package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zombar/newscheck/internal/database"
	"github.com/zombar/newscheck/internal/models"
	"github.com/zombar/newscheck/internal/tracing"
)

type feedbackRequest struct {
	AnalysisID     string  `json:"analysis_id"`
	CorrectVerdict string  `json:"correct_verdict"`
	CorrectScore   float64 `json:"correct_score"`
	UserFeedback   string  `json:"user_feedback"`
}

// handleFeedback stores a correction and, once enough have accumulated,
// schedules a retrain without waiting for it
func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.AnalysisID == "" {
		respondError(w, "analysis_id is required", http.StatusBadRequest)
		return
	}

	analysis, err := h.cfg.DB.GetAnalysis(r.Context(), req.AnalysisID)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, "Analysis not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.serverError(w, r, "Could not read analysis", err)
		return
	}

	record := &models.FeedbackRecord{
		AnalysisID:      analysis.ID,
		OriginalScore:   analysis.Score,
		CorrectScore:    req.CorrectScore,
		OriginalVerdict: analysis.Verdict,
		CorrectVerdict:  req.CorrectVerdict,
		UserFeedback:    req.UserFeedback,
	}

	_, shouldRetrain, count, err := h.cfg.Trigger.RecordFeedback(r.Context(), record)
	if err != nil {
		h.serverError(w, r, "Could not save feedback", err)
		return
	}

	scheduled := false
	if shouldRetrain {
		if err := h.cfg.Launcher.LaunchRetrain(r.Context()); err != nil {
			h.logger.Error("failed to schedule retrain", "error", err, "feedback_count", count)
		} else {
			scheduled = true
		}
	}

	tracing.SetSpanAttributes(r.Context(),
		attribute.String("analysis.id", analysis.ID),
		attribute.Int("feedback.count", count),
		attribute.Bool("retrain.scheduled", scheduled),
	)

	respondJSON(w, map[string]any{
		"ok":                true,
		"message":           "Feedback processed to improve the system",
		"feedback_count":    count,
		"retrain_scheduled": scheduled,
	}, http.StatusOK)
}

// handleRetrain runs a feedback retrain and waits for the outcome. With a
// queue configured the retrain is enqueued for the worker instead, so only
// the worker process ever runs one.
func (h *Handler) handleRetrain(w http.ResponseWriter, r *http.Request) {
	if h.cfg.RetrainQueue != nil {
		h.enqueueRetrain(w, r)
		return
	}

	result := h.cfg.Trigger.RetrainNow(r.Context())
	if !result.Trained {
		h.respondRetrainFailure(w, result)
		return
	}

	respondJSON(w, map[string]any{
		"ok":      true,
		"message": fmt.Sprintf("Model retrained with %d feedback records", result.FeedbackCount),
		"details": result.Output,
		"result":  result,
	}, http.StatusOK)
}

func (h *Handler) enqueueRetrain(w http.ResponseWriter, r *http.Request) {
	count, err := h.cfg.DB.CountFeedback(r.Context())
	if err != nil {
		h.serverError(w, r, "Could not count feedback", err)
		return
	}
	switch {
	case count == 0:
		h.respondRetrainFailure(w, models.RetrainResult{Reason: models.ReasonNoFeedbackFile})
		return
	case count < h.cfg.Trigger.Threshold():
		h.respondRetrainFailure(w, models.RetrainResult{FeedbackCount: count, Reason: models.ReasonInsufficientFeedback})
		return
	}

	taskID, err := h.cfg.RetrainQueue.EnqueueRetrain(r.Context(), "manual")
	if err != nil {
		h.serverError(w, r, "Could not queue retrain", err)
		return
	}
	if taskID == "" {
		h.respondRetrainFailure(w, models.RetrainResult{
			FeedbackCount: count,
			Reason:        models.ReasonAlreadyRunning,
			Error:         "A retrain is already queued",
		})
		return
	}

	respondJSON(w, map[string]any{
		"ok":             true,
		"message":        fmt.Sprintf("Retrain queued with %d feedback records", count),
		"task_id":        taskID,
		"feedback_count": count,
	}, http.StatusAccepted)
}

func (h *Handler) respondRetrainFailure(w http.ResponseWriter, result models.RetrainResult) {
	status := http.StatusBadRequest
	switch result.Reason {
	case models.ReasonAlreadyRunning:
		status = http.StatusConflict
	case models.ReasonException:
		status = http.StatusInternalServerError
	}

	details := result.Error
	if details == "" && result.Reason == models.ReasonInsufficientFeedback {
		details = fmt.Sprintf("Only %d feedback records available (minimum %d)", result.FeedbackCount, h.cfg.Trigger.Threshold())
	}

	respondJSON(w, map[string]any{
		"ok":      false,
		"message": "Could not retrain: " + result.Reason,
		"details": details,
		"result":  result,
	}, status)
}

// handleTrain trains the classifier from scratch on the reference corpus
func (h *Handler) handleTrain(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Trainer == nil {
		respondError(w, "Training is not configured", http.StatusNotImplemented)
		return
	}

	corpus, err := h.cfg.DB.ListReferenceArticles(r.Context())
	if err != nil {
		h.serverError(w, r, "Could not read reference corpus", err)
		return
	}

	output, err := h.cfg.Trainer.Train(r.Context(), corpus)
	if err != nil {
		h.logger.Error("training failed", "error", err, "corpus_size", len(corpus))
		respondJSON(w, map[string]any{
			"ok":      false,
			"message": "Model training failed",
			"details": output,
			"error":   err.Error(),
		}, http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]any{
		"ok":          true,
		"message":     "Model trained successfully",
		"corpus_size": len(corpus),
		"details":     output,
	}, http.StatusOK)
}
