// Package explain turns a fused verdict into user-facing rationale.
package explain

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/zombar/newscheck/internal/models"
)

// factorRule contributes one factor line when any label triggers it
type factorRule struct {
	line    string
	matches func(label string) bool
}

// factorRules are evaluated in declaration order; each adds at most one line
var factorRules = []factorRule{
	{
		line: "• El titular es sensacionalista o engañoso",
		matches: func(l string) bool {
			return l == "clickbait" || (strings.Contains(l, "titular") && strings.Contains(l, "engañoso"))
		},
	},
	{
		line: "• Las fuentes citadas son poco confiables o no existen",
		matches: func(l string) bool {
			return l == "sin_fuente" || (strings.Contains(l, "fuente") && strings.Contains(l, "confiable"))
		},
	},
	{
		line: "• La información contradice fuentes establecidas",
		matches: func(l string) bool {
			return strings.Contains(l, "contradice")
		},
	},
	{
		line: "• Los datos coinciden con fuentes oficiales",
		matches: func(l string) bool {
			return strings.Contains(l, "verificado")
		},
	},
	{
		line: "• Múltiples fuentes confiables confirman la información",
		matches: func(l string) bool {
			return strings.Contains(l, "consenso")
		},
	},
}

var recommendationText = map[models.Recommendation]string{
	models.RecommendShare:       "✅ Puede compartirse con confianza",
	models.RecommendVerifyFirst: "⚠️ Verificar con otras fuentes antes de compartir",
	models.RecommendDoNotShare:  "❌ No se recomienda compartir",
}

// Explain builds the simple and detailed explanation for a final score and verdict.
// The band follows verdict first, then score; the recommendation follows the score only.
func Explain(score int, verdict models.Verdict, labels []string) models.Explanation {
	var simple, detailed string

	switch {
	case verdict == models.VerdictFalse || score < 30:
		simple = "🔴 Esta noticia contiene información falsa o muy engañosa."
		detailed = fmt.Sprintf("**Puntaje muy bajo (%d/100):** La información presenta múltiples problemas de veracidad. Se detectaron afirmaciones sin sustento factual y fuentes no confiables.", score)
	case verdict == models.VerdictDoubtful || score < 60:
		simple = "🟡 La información presenta señales de alerta y requiere verificación."
		detailed = fmt.Sprintf("**Puntaje medio (%d/100):** Se encontraron contradicciones o falta de transparencia en las fuentes. Se recomienda consultar medios establecidos antes de compartir.", score)
	case verdict == models.VerdictTrue || score >= 60:
		simple = "🟢 La noticia parece confiable y bien fundamentada."
		detailed = fmt.Sprintf("**Puntaje alto (%d/100):** La información coincide con fuentes verificables y presenta datos consistentes. Puede considerarse confiable.", score)
	default:
		simple = "⚪ No se pudo determinar la veracidad con la información disponible."
		detailed = fmt.Sprintf("**Puntaje indeterminado (%d/100):** Se requiere más contexto o fuentes adicionales para una evaluación completa.", score)
	}

	factors := Factors(labels)
	if len(factors) > 0 {
		detailed += "\n\n**Factores clave:**\n" + strings.Join(factors, "\n")
	}

	rec := RecommendationFor(score)
	detailed += "\n\n**Recomendación:** " + recommendationText[rec]

	return models.Explanation{
		Simple:         simple,
		Detailed:       detailed,
		Factors:        factors,
		Recommendation: rec,
		Confidence:     ConfidenceFor(score),
	}
}

// Factors scans labels for the fixed triggers
func Factors(labels []string) []string {
	factors := []string{}
	for _, rule := range factorRules {
		for _, label := range labels {
			if rule.matches(strings.ToLower(label)) {
				factors = append(factors, rule.line)
				break
			}
		}
	}
	return factors
}

// RecommendationFor maps a score to sharing advice
func RecommendationFor(score int) models.Recommendation {
	switch {
	case score >= 70:
		return models.RecommendShare
	case score >= 40:
		return models.RecommendVerifyFirst
	default:
		return models.RecommendDoNotShare
	}
}

// ConfidenceFor maps a score to a confidence band
func ConfidenceFor(score int) models.ConfidenceLevel {
	switch {
	case score >= 80:
		return models.ConfidenceHigh
	case score >= 50:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// RenderHTML renders the detailed explanation markdown to HTML
func RenderHTML(detailed string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.HardLineBreak)
	doc := p.Parse([]byte(detailed))
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.SkipHTML})
	return string(markdown.Render(doc, renderer))
}
