package verdict

import (
	"math"
	"strings"

	"github.com/zombar/newscheck/internal/models"
)

const (
	neutralScore      = 50.0
	neutralConfidence = 0.5
)

// verdictTable maps every known external verdict string to the normalized enum.
// Keys are lowercase and trimmed.
var verdictTable = map[string]models.Verdict{
	"verdadera":  models.VerdictTrue,
	"verdadero":  models.VerdictTrue,
	"real":       models.VerdictTrue,
	"confiable":  models.VerdictTrue,
	"true":       models.VerdictTrue,
	"true_claim": models.VerdictTrue,

	"falsa":       models.VerdictFalse,
	"falso":       models.VerdictFalse,
	"engañosa":    models.VerdictFalse,
	"engañoso":    models.VerdictFalse,
	"fake":        models.VerdictFalse,
	"false":       models.VerdictFalse,
	"false_claim": models.VerdictFalse,

	"dudosa":         models.VerdictDoubtful,
	"dudoso":         models.VerdictDoubtful,
	"incierta":       models.VerdictDoubtful,
	"incompleta":     models.VerdictDoubtful,
	"no_concluyente": models.VerdictDoubtful,
	"doubtful":       models.VerdictDoubtful,
}

// Normalize maps a raw verdict string into the four-value enum.
// Unrecognized or empty strings map to unknown.
func Normalize(raw string) models.Verdict {
	v := strings.ToLower(strings.TrimSpace(raw))
	if mapped, ok := verdictTable[v]; ok {
		return mapped
	}
	return models.VerdictUnknown
}

// NormalizeOutput applies neutral defaults to a raw classifier output.
// A missing score is derived from the confidence when one is given.
func NormalizeOutput(out models.ClassifierOutput) models.NormalizedOutput {
	confidence := neutralConfidence
	hasConfidence := false
	if out.Confidence != nil && !math.IsNaN(*out.Confidence) {
		confidence = *out.Confidence
		hasConfidence = true
	}

	score := neutralScore
	switch {
	case out.Score != nil && !math.IsNaN(*out.Score):
		score = *out.Score
	case hasConfidence:
		score = math.Round(confidence * 100)
	}

	return models.NormalizedOutput{
		Verdict:    Normalize(out.Verdict),
		Score:      score,
		Confidence: confidence,
	}
}

// Float returns a pointer to v, for building ClassifierOutput literals
func Float(v float64) *float64 {
	return &v
}
