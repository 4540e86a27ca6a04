package verdict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/newscheck/internal/models"
)

func out(verdict string, score, confidence *float64) models.ClassifierOutput {
	return models.ClassifierOutput{Verdict: verdict, Score: score, Confidence: confidence}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw      string
		expected models.Verdict
	}{
		{"verdadera", models.VerdictTrue},
		{"  REAL ", models.VerdictTrue},
		{"Confiable", models.VerdictTrue},
		{"true", models.VerdictTrue},
		{"falsa", models.VerdictFalse},
		{"Engañosa", models.VerdictFalse},
		{"FAKE", models.VerdictFalse},
		{"dudosa", models.VerdictDoubtful},
		{"no_concluyente", models.VerdictDoubtful},
		{"incompleta", models.VerdictDoubtful},
		{"no_verificable", models.VerdictUnknown},
		{"error", models.VerdictUnknown},
		{"", models.VerdictUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.raw))
		})
	}
}

func TestNormalizeOutputDefaults(t *testing.T) {
	t.Run("all missing", func(t *testing.T) {
		n := NormalizeOutput(models.ClassifierOutput{})
		assert.Equal(t, models.VerdictUnknown, n.Verdict)
		assert.Equal(t, 50.0, n.Score)
		assert.Equal(t, 0.5, n.Confidence)
	})

	t.Run("score derived from confidence", func(t *testing.T) {
		n := NormalizeOutput(out("falsa", nil, Float(0.834)))
		assert.Equal(t, 83.0, n.Score)
		assert.Equal(t, 0.834, n.Confidence)
	})

	t.Run("explicit score wins", func(t *testing.T) {
		n := NormalizeOutput(out("falsa", Float(12), Float(0.9)))
		assert.Equal(t, 12.0, n.Score)
	})
}

func TestFuseScenarios(t *testing.T) {
	tests := []struct {
		name    string
		llm     models.ClassifierOutput
		ml      models.ClassifierOutput
		verdict models.Verdict
		score   int
		flag    string
	}{
		{
			name:    "consensus true",
			llm:     out("verdadera", Float(80), nil),
			ml:      out("verdadera", Float(82), Float(0.9)),
			verdict: models.VerdictTrue,
			score:   86,
			flag:    FlagConsensusTrue,
		},
		{
			name:    "llm doubtful and ml confidently false",
			llm:     out("dudosa", Float(55), nil),
			ml:      out("falsa", Float(20), Float(0.8)),
			verdict: models.VerdictFalse,
			score:   24,
			flag:    FlagLLMDoubtfulMLFalse,
		},
		{
			name:    "consensus false",
			llm:     out("falsa", Float(10), nil),
			ml:      out("falsa", Float(30), Float(0.5)),
			verdict: models.VerdictFalse,
			score:   25,
			flag:    FlagConsensusFalse,
		},
		{
			name:    "consensus true capped at 100",
			llm:     out("real", Float(100), nil),
			ml:      out("real", Float(100), Float(1)),
			verdict: models.VerdictTrue,
			score:   100,
			flag:    FlagConsensusTrue,
		},
		{
			name:    "llm dominant",
			llm:     out("verdadera", Float(90), nil),
			ml:      out("dudosa", Float(40), Float(0.4)),
			verdict: models.VerdictTrue,
			score:   75,
			flag:    FlagLLMDominant,
		},
		{
			name:    "llm dominant with unknown llm verdict uses ml verdict",
			llm:     out("no_verificable", Float(70), nil),
			ml:      out("falsa", Float(50), Float(0.55)),
			verdict: models.VerdictFalse,
			score:   64,
			flag:    FlagLLMDominant,
		},
		{
			name:    "ml dominant",
			llm:     out("verdadera", Float(50), nil),
			ml:      out("falsa", Float(10), Float(0.9)),
			verdict: models.VerdictFalse,
			score:   22,
			flag:    FlagMLDominant,
		},
		{
			name:    "strong disagreement",
			llm:     out("verdadera", Float(65), nil),
			ml:      out("falsa", Float(30), Float(0.7)),
			verdict: models.VerdictRequiresVerification,
			score:   35,
			flag:    FlagStrongDisagreement,
		},
		{
			name:    "fallback average",
			llm:     out("dudosa", Float(61), nil),
			ml:      out("verdadera", Float(64), Float(0.64)),
			verdict: models.VerdictDoubtful,
			score:   63,
			flag:    FlagFallbackAverage,
		},
		{
			name:    "fallback with unknown llm uses ml verdict",
			llm:     out("", nil, nil),
			ml:      out("verdadera", Float(60), Float(0.6)),
			verdict: models.VerdictTrue,
			score:   55,
			flag:    FlagFallbackAverage,
		},
		{
			name:    "llm unavailable default with ml error",
			llm:     out("dudosa", Float(50), nil),
			ml:      out("error", Float(50), Float(0.5)),
			verdict: models.VerdictDoubtful,
			score:   50,
			flag:    FlagFallbackAverage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Fuse(tt.llm, tt.ml)
			assert.Equal(t, tt.verdict, result.FinalVerdict)
			assert.Equal(t, tt.score, result.FinalScore)
			require.Len(t, result.Flags, 1)
			assert.Equal(t, tt.flag, result.Flags[0])
		})
	}
}

func TestFusePrecedence(t *testing.T) {
	// Matches consensus_true and llm_dominant; the earlier rule must win.
	result := Fuse(out("verdadera", Float(90), nil), out("verdadera", Float(55), Float(0.55)))
	assert.Equal(t, []string{FlagConsensusTrue}, result.Flags)
	assert.Equal(t, 81, result.FinalScore)

	// Matches rule 1 and ml_dominant; rule 1 wins.
	result = Fuse(out("dudosa", Float(30), nil), out("falsa", Float(10), Float(0.95)))
	assert.Equal(t, []string{FlagLLMDoubtfulMLFalse}, result.Flags)
	assert.Equal(t, 12, result.FinalScore)
}

func TestFuseAlwaysInRange(t *testing.T) {
	verdicts := []string{"verdadera", "falsa", "dudosa", "otra", ""}
	scores := []float64{-20, 0, 29.5, 50, 70, 100, 140}
	confidences := []float64{0, 0.5, 0.6, 0.75, 1}

	for _, lv := range verdicts {
		for _, mv := range verdicts {
			for _, ls := range scores {
				for _, ms := range scores {
					for _, mc := range confidences {
						result := Fuse(out(lv, Float(ls), nil), out(mv, Float(ms), Float(mc)))
						assert.GreaterOrEqual(t, result.FinalScore, 0)
						assert.LessOrEqual(t, result.FinalScore, 100)
						require.Len(t, result.Flags, 1)
						assert.Contains(t, Flags, result.Flags[0])
					}
				}
			}
		}
	}
}

func TestFuseKeepsNormalizedInputs(t *testing.T) {
	result := Fuse(out("Verdadera", Float(80), nil), out("falsa", nil, Float(0.9)))
	assert.Equal(t, models.VerdictTrue, result.LLM.Verdict)
	assert.Equal(t, 80.0, result.LLM.Score)
	assert.Equal(t, models.VerdictFalse, result.ML.Verdict)
	assert.Equal(t, 90.0, result.ML.Score)
}
