// Package calibration corrects scores against a human-labeled reference corpus.
package calibration

import (
	"math"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/zombar/newscheck/internal/models"
)

// MatchThreshold is the minimum similarity (exclusive) for a reference match
const MatchThreshold = 0.6

const defaultVerifiedScore = 50

var labelScores = map[string]int{
	"real":      85,
	"verdadero": 85,
	"verdadera": 85,
	"confiable": 80,
	"dudoso":    40,
	"dudosa":    40,
	"falso":     20,
	"falsa":     20,
	"fake":      15,
	"engañoso":  30,
}

// VerifiedScore maps a reference label to the score it implies
func VerifiedScore(label string) int {
	if score, ok := labelScores[strings.ToLower(strings.TrimSpace(label))]; ok {
		return score
	}
	return defaultVerifiedScore
}

// FindMatches returns every reference article similar enough to the analysis.
// There is no cap on the number of matches.
func FindMatches(analysis models.Analysis, corpus []models.ReferenceArticle) []models.CalibrationMatch {
	text := analysis.Title + " " + analysis.Body

	var matches []models.CalibrationMatch
	for _, ref := range corpus {
		similarity := Similarity(text, ref.Title+" "+ref.Body)
		if similarity > MatchThreshold {
			matches = append(matches, models.CalibrationMatch{
				Reference:     ref,
				Similarity:    similarity,
				VerifiedScore: VerifiedScore(ref.Label),
			})
		}
	}
	return matches
}

// ApplyCalibration blends the original score with the mean verified score,
// rounded to one decimal. With no matches the original score is returned.
func ApplyCalibration(originalScore float64, matches []models.CalibrationMatch) float64 {
	mean, ok := meanVerified(matches)
	if !ok {
		return originalScore
	}

	calibrated := math.Round((originalScore*0.6+mean*0.4)*10) / 10
	return math.Max(0, math.Min(100, calibrated))
}

// Accuracy scores how close the calibrated score lands to the verified mean
func Accuracy(calibratedScore float64, matches []models.CalibrationMatch) float64 {
	mean, ok := meanVerified(matches)
	if !ok {
		return 0
	}
	return math.Max(0, 100-math.Abs(calibratedScore-mean))
}

func meanVerified(matches []models.CalibrationMatch) (float64, bool) {
	if len(matches) == 0 {
		return 0, false
	}
	scores := make(stats.Float64Data, len(matches))
	for i, m := range matches {
		scores[i] = float64(m.VerifiedScore)
	}
	mean, err := scores.Mean()
	if err != nil {
		return 0, false
	}
	return mean, true
}
