package dataset

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/zombar/newscheck/internal/models"
)

var exportHeader = []string{
	"id", "created_at", "source", "title", "score", "verdict",
	"labels", "rationale", "latency_ms", "model",
}

// WriteCSV writes analyses as CSV with CRLF line endings. Labels are joined with "|".
func WriteCSV(w io.Writer, analyses []models.Analysis) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, a := range analyses {
		record := []string{
			a.ID,
			a.CreatedAt.UTC().Format(time.RFC3339),
			a.Source,
			a.Title,
			strconv.FormatFloat(a.Score, 'f', -1, 64),
			a.Verdict,
			strings.Join(a.Labels, "|"),
			a.Rationale,
			strconv.FormatInt(a.LatencyMS, 10),
			a.Model,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
