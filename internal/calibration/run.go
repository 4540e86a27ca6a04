package calibration

import (
	"math"
	"time"

	"github.com/zombar/newscheck/internal/models"
)

const defaultOriginalScore = 50.0

// Run calibrates each recent analysis against the reference corpus and returns
// the aggregate log entry. An empty corpus yields an all-zero report.
// Inputs are not modified.
func Run(recent []models.Analysis, corpus []models.ReferenceArticle, now time.Time) models.CalibrationLogEntry {
	results := []models.CalibrationItem{}
	accuracySum := 0.0

	for _, analysis := range recent {
		matches := FindMatches(analysis, corpus)
		if len(matches) == 0 {
			continue
		}

		original := analysis.Score
		if original == 0 {
			original = defaultOriginalScore
		}
		calibrated := ApplyCalibration(original, matches)
		accuracy := Accuracy(calibrated, matches)
		accuracySum += accuracy

		results = append(results, models.CalibrationItem{
			AnalysisID:      analysis.ID,
			OriginalScore:   original,
			CalibratedScore: calibrated,
			MatchesFound:    len(matches),
			Accuracy:        int(math.Round(accuracy)),
		})
	}

	calibrated := len(results)
	avgAccuracy := 0.0
	if calibrated > 0 {
		avgAccuracy = accuracySum / float64(calibrated)
	}
	rate := 0.0
	if len(recent) > 0 {
		rate = float64(calibrated) / float64(len(recent)) * 100
	}

	return models.CalibrationLogEntry{
		Timestamp:          now.UTC(),
		TotalAnalyses:      len(recent),
		CalibratedAnalyses: calibrated,
		CalibrationRate:    round2(rate),
		AverageAccuracy:    round2(avgAccuracy),
		Results:            results,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
