// Package verdict merges the LLM judge and the local classifier into a single
// credibility verdict using a fixed, ordered rule policy.
package verdict

import (
	"math"

	"github.com/zombar/newscheck/internal/models"
)

// Rule flags, one per branch of the policy
const (
	FlagLLMDoubtfulMLFalse = "llm_doubtful_ml_false_high_confidence"
	FlagConsensusTrue      = "consensus_true"
	FlagConsensusFalse     = "consensus_false"
	FlagLLMDominant        = "llm_dominant"
	FlagMLDominant         = "ml_dominant"
	FlagStrongDisagreement = "strong_disagreement"
	FlagFallbackAverage    = "fallback_average"
)

// Flags lists every rule flag in evaluation order
var Flags = []string{
	FlagLLMDoubtfulMLFalse,
	FlagConsensusTrue,
	FlagConsensusFalse,
	FlagLLMDominant,
	FlagMLDominant,
	FlagStrongDisagreement,
	FlagFallbackAverage,
}

const (
	highConfidence   = 0.75
	mediumConfidence = 0.6
	consensusBonus   = 5.0
)

// Fuse merges the two classifier outputs. The first matching rule wins.
// It never fails: missing fields fall back to neutral values.
func Fuse(llmOut, mlOut models.ClassifierOutput) models.FusionResult {
	llm := NormalizeOutput(llmOut)
	ml := NormalizeOutput(mlOut)

	var (
		verdict models.Verdict
		score   float64
		flag    string
	)

	switch {
	case llm.Verdict == models.VerdictDoubtful && ml.Verdict == models.VerdictFalse && ml.Confidence >= highConfidence:
		verdict = models.VerdictFalse
		score = ml.Score*0.9 + llm.Score*0.1
		flag = FlagLLMDoubtfulMLFalse

	case llm.Verdict == models.VerdictTrue && ml.Verdict == models.VerdictTrue:
		verdict = models.VerdictTrue
		score = math.Min(100, math.Round(llm.Score*0.6+ml.Score*0.4+consensusBonus))
		flag = FlagConsensusTrue

	case llm.Verdict == models.VerdictFalse && ml.Verdict == models.VerdictFalse:
		verdict = models.VerdictFalse
		score = math.Min(100, math.Round(llm.Score*0.5+ml.Score*0.5+consensusBonus))
		flag = FlagConsensusFalse

	case llm.Score >= 70 && ml.Confidence < mediumConfidence:
		verdict = preferLLM(llm.Verdict, ml.Verdict)
		score = llm.Score*0.7 + ml.Score*0.3
		flag = FlagLLMDominant

	case ml.Confidence >= highConfidence && (llm.Verdict == models.VerdictDoubtful || llm.Score < 60):
		verdict = ml.Verdict
		score = ml.Score*0.7 + llm.Score*0.3
		flag = FlagMLDominant

	case (llm.Verdict == models.VerdictTrue && ml.Verdict == models.VerdictFalse) ||
		(llm.Verdict == models.VerdictFalse && ml.Verdict == models.VerdictTrue):
		verdict = models.VerdictRequiresVerification
		score = math.Abs(llm.Score - ml.Score)
		flag = FlagStrongDisagreement

	default:
		verdict = preferLLM(llm.Verdict, ml.Verdict)
		score = (llm.Score + ml.Score) / 2
		flag = FlagFallbackAverage
	}

	return models.FusionResult{
		FinalVerdict: verdict,
		FinalScore:   clampScore(score),
		Flags:        []string{flag},
		LLM:          llm,
		ML:           ml,
	}
}

// preferLLM returns the LLM verdict unless it is unknown
func preferLLM(llm, ml models.Verdict) models.Verdict {
	if llm != models.VerdictUnknown {
		return llm
	}
	return ml
}

// clampScore rounds half away from zero and clamps to [0,100]
func clampScore(score float64) int {
	if math.IsNaN(score) {
		return int(neutralScore)
	}
	rounded := math.Round(score)
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return int(rounded)
}
