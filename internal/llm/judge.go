// Package llm asks an external language model for a credibility judgment of a news article.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zombar/newscheck/internal/models"
)

const (
	// DefaultScore is used when the model omits or mistypes the score
	DefaultScore = 50.0
	// DefaultVerdict is used when the model omits the verdict
	DefaultVerdict = "dudosa"
	// NoExternalLLMLabel marks judgments produced without an external model
	NoExternalLLMLabel = "sin_llm_externo"

	maxEvidence = 3
)

// Judge produces a credibility judgment for an article
type Judge interface {
	Judge(ctx context.Context, article models.Article) (models.Judgment, error)
	Name() string
}

// Provider is a chat-style model backend
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// DefaultJudgment is the neutral judgment substituted when the external model fails
func DefaultJudgment() models.Judgment {
	return models.Judgment{
		Score:     DefaultScore,
		Verdict:   DefaultVerdict,
		Labels:    []string{NoExternalLLMLabel},
		Rationale: "No se pudo contactar con el servicio de verificación externa. El análisis se basa solo en el modelo local.",
		Evidence:  []models.Evidence{},
	}
}

// ProviderJudge turns a Provider into a Judge
type ProviderJudge struct {
	provider Provider
	logger   *slog.Logger
}

// NewProviderJudge wraps p as a Judge
func NewProviderJudge(p Provider) *ProviderJudge {
	return &ProviderJudge{provider: p, logger: slog.Default()}
}

// Name returns the provider name
func (j *ProviderJudge) Name() string {
	return j.provider.Name()
}

// Judge prompts the provider and parses its answer
func (j *ProviderJudge) Judge(ctx context.Context, article models.Article) (models.Judgment, error) {
	start := time.Now()
	j.logger.Info("requesting llm judgment", "provider", j.provider.Name(), "model", j.provider.Model())

	text, err := j.provider.Complete(ctx, SystemPrompt, BuildPrompt(article))
	if err != nil {
		return models.Judgment{}, fmt.Errorf("%s completion failed: %w", j.provider.Name(), err)
	}

	judgment, err := ParseJudgment(text)
	if err != nil {
		return models.Judgment{}, err
	}

	judgment.Provider = j.provider.Name()
	judgment.Model = j.provider.Model()
	judgment.LatencyMS = time.Since(start).Milliseconds()

	j.logger.Info("llm judgment received",
		"provider", judgment.Provider,
		"score", judgment.Score,
		"verdict", judgment.Verdict,
		"latency_ms", judgment.LatencyMS,
	)
	return judgment, nil
}

// SystemPrompt constrains the model to a single JSON answer
const SystemPrompt = "Responde SIEMPRE con un único JSON válido."

// BuildPrompt renders the verification protocol for an article
func BuildPrompt(article models.Article) string {
	return fmt.Sprintf(`Eres un verificador profesional de noticias. Analiza cualquier tipo de noticia (política, salud, deportes, farándula, local, internacional) siguiendo este protocolo:

1) Lee el título, fuente y cuerpo.
2) Imagina que consultas varias fuentes abiertas y comparas:
   - coherencia de fechas
   - existencia de los hechos
   - reputación de la fuente
3) Asigna:
   - un score numérico de 0 a 100 (score)
   - un veredicto (verdict): "verdadera", "falsa", "dudosa" o "no_verificable"
   - etiquetas (labels) que describan el tipo de problema o confiabilidad.
4) Devuelve SOLO un JSON válido estrictamente con esta forma:

{
  "score": 0-100,
  "verdict": "verdadera|falsa|dudosa|no_verificable",
  "labels": ["opcional", "lista"],
  "rationale": "Explicación breve en español",
  "evidence": [
    {
      "claim": "frase de la noticia evaluada",
      "assessment": "compatible|contradicha|no_verificable",
      "sources": ["https://...","https://..."]
    }
  ],
  "checks": {
    "fecha_coherente": true|false|null,
    "fuente_identificable": true|false|null,
    "consenso_en_fuentes": true|false|null
  }
}

TEXTO A VERIFICAR:
- Título: %s
- Fuente: %s
- Cuerpo: %s

EJECUTA TU RAZONAMIENTO INTERNAMENTE Y RESPONDE SOLO CON EL JSON.`, article.Title, article.Source, article.Body)
}

type rawJudgment struct {
	Score     json.RawMessage `json:"score"`
	Verdict   json.RawMessage `json:"verdict"`
	Labels    json.RawMessage `json:"labels"`
	Rationale json.RawMessage `json:"rationale"`
	Evidence  json.RawMessage `json:"evidence"`
	Checks    json.RawMessage `json:"checks"`
}

// ParseJudgment decodes a model answer. The answer may wrap the JSON object
// in prose; the outermost {...} is used then. Missing or mistyped fields
// fall back to neutral values and evidence is capped at three items.
func ParseJudgment(text string) (models.Judgment, error) {
	text = strings.TrimSpace(text)

	var raw rawJudgment
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return models.Judgment{}, fmt.Errorf("no JSON object found in response")
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
			return models.Judgment{}, fmt.Errorf("failed to parse judgment JSON: %w", err)
		}
	}

	judgment := models.Judgment{
		Score:     DefaultScore,
		Verdict:   DefaultVerdict,
		Labels:    []string{},
		Rationale: "Sin explicación",
		Evidence:  []models.Evidence{},
	}

	var score float64
	if present(raw.Score) && json.Unmarshal(raw.Score, &score) == nil {
		judgment.Score = score
	}
	var verdict string
	if json.Unmarshal(raw.Verdict, &verdict) == nil && verdict != "" {
		judgment.Verdict = verdict
	}
	var labels []string
	if json.Unmarshal(raw.Labels, &labels) == nil && labels != nil {
		judgment.Labels = labels
	}
	var rationale string
	if json.Unmarshal(raw.Rationale, &rationale) == nil && rationale != "" {
		judgment.Rationale = rationale
	}
	var evidence []models.Evidence
	if json.Unmarshal(raw.Evidence, &evidence) == nil && evidence != nil {
		if len(evidence) > maxEvidence {
			evidence = evidence[:maxEvidence]
		}
		judgment.Evidence = evidence
	}
	var checks models.Checks
	if json.Unmarshal(raw.Checks, &checks) == nil {
		judgment.Checks = checks
	}

	return judgment, nil
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
