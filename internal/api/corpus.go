package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/zombar/newscheck/internal/dataset"
)

// handleUploadDataset ingests a labeled CSV or XLSX file into the
// reference corpus. Files without a label column are parsed but not stored.
func (h *Handler) handleUploadDataset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		respondError(w, "Invalid multipart upload", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ds, err := dataset.Read(file, header.Filename)
	if errors.Is(err, dataset.ErrUnsupportedFormat) {
		respondError(w, "Unsupported file format, use .csv or .xlsx", http.StatusUnsupportedMediaType)
		return
	}
	if err != nil {
		respondError(w, fmt.Sprintf("Could not read dataset: %v", err), http.StatusBadRequest)
		return
	}

	inserted := 0
	message := "Dataset has no label column; nothing added to the reference corpus"
	if ds.Labeled {
		inserted, err = h.cfg.DB.InsertReferenceArticles(r.Context(), ds.Articles)
		if err != nil {
			h.serverError(w, r, "Could not store dataset", err)
			return
		}
		message = fmt.Sprintf("Labeled dataset stored: %d new reference articles", inserted)
	}

	h.logger.Info("dataset uploaded",
		"file", header.Filename,
		"records", len(ds.Articles),
		"inserted", inserted,
		"skipped", ds.Skipped,
		"labeled", ds.Labeled,
	)

	respondJSON(w, map[string]any{
		"ok":            true,
		"message":       message,
		"total_records": len(ds.Articles),
		"inserted":      inserted,
		"duplicates":    len(ds.Articles) - inserted,
		"skipped":       ds.Skipped,
		"labeled":       ds.Labeled,
	}, http.StatusOK)
}

// handleCalibrate runs a calibration pass over recent analyses
func (h *Handler) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	entry, err := h.cfg.Calibration.Calibrate(r.Context())
	if err != nil {
		h.serverError(w, r, "Calibration failed", err)
		return
	}

	message := fmt.Sprintf("Calibration completed: %d/%d analyses calibrated",
		entry.CalibratedAnalyses, entry.TotalAnalyses)
	respondJSON(w, map[string]any{
		"ok":               true,
		"message":          message,
		"avg_accuracy":     round2(entry.AverageAccuracy),
		"calibration_rate": round2(entry.CalibrationRate),
		"results":          entry.Results,
		"log_id":           entry.ID,
	}, http.StatusOK)
}

// handleCalibrationLogs lists the latest calibration runs, newest first
func (h *Handler) handleCalibrationLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.cfg.Calibration.Logs(r.Context())
	if err != nil {
		h.serverError(w, r, "Could not read calibration logs", err)
		return
	}
	respondJSON(w, map[string]any{"ok": true, "logs": logs}, http.StatusOK)
}

// handleExportCSV streams the full analysis history as CSV
func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	analyses, err := h.cfg.DB.AllAnalyses(r.Context())
	if err != nil {
		h.serverError(w, r, "Could not export CSV", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=analyses.csv")
	if err := dataset.WriteCSV(w, analyses); err != nil {
		h.logger.Error("failed to write CSV export", "error", err)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
