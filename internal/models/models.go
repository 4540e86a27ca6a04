package models

import "time"

// Verdict is the normalized credibility verdict shared by both classifiers
type Verdict string

const (
	VerdictTrue     Verdict = "true_claim"
	VerdictFalse    Verdict = "false_claim"
	VerdictDoubtful Verdict = "doubtful"
	VerdictUnknown  Verdict = "unknown"

	// VerdictRequiresVerification is only produced by fusion when the classifiers disagree
	VerdictRequiresVerification Verdict = "requires_verification"
)

// Recommendation is the sharing advice derived from the final score
type Recommendation string

const (
	RecommendShare       Recommendation = "share"
	RecommendVerifyFirst Recommendation = "verify_first"
	RecommendDoNotShare  Recommendation = "do_not_share"
)

// ConfidenceLevel is the coarse confidence band shown to users
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "alta"
	ConfidenceMedium ConfidenceLevel = "media"
	ConfidenceLow    ConfidenceLevel = "baja"
)

// Article is a news item submitted for verification
type Article struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Source string `json:"source"`
}

// ClassifierOutput is the raw result of either classifier before normalization.
// Nil pointers mean the collaborator did not provide the field.
type ClassifierOutput struct {
	Verdict    string   `json:"verdict"`
	Score      *float64 `json:"score,omitempty"`      // 0-100
	Confidence *float64 `json:"confidence,omitempty"` // 0-1
}

// NormalizedOutput is a classifier output after defaults and verdict mapping
type NormalizedOutput struct {
	Verdict    Verdict `json:"verdict"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// FusionResult is the merged verdict of the LLM and local classifier
type FusionResult struct {
	FinalVerdict Verdict          `json:"final_verdict"`
	FinalScore   int              `json:"final_score"`
	Flags        []string         `json:"flags"`
	LLM          NormalizedOutput `json:"llm"`
	ML           NormalizedOutput `json:"ml"`
}

// Explanation is the human-readable rationale for a fused result
type Explanation struct {
	Simple         string          `json:"simple"`
	Detailed       string          `json:"detailed"`
	DetailedHTML   string          `json:"detailed_html,omitempty"`
	Factors        []string        `json:"factors"`
	Recommendation Recommendation  `json:"recommendation"`
	Confidence     ConfidenceLevel `json:"confidence"`
}

// Evidence is a single claim assessment returned by the LLM judge
type Evidence struct {
	Claim      string   `json:"claim"`
	Assessment string   `json:"assessment"`
	Sources    []string `json:"sources"`
}

// Checks are the tri-state heuristics the LLM judge reports
type Checks struct {
	CoherentDate       *bool `json:"fecha_coherente"`
	IdentifiableSource *bool `json:"fuente_identificable"`
	SourceConsensus    *bool `json:"consenso_en_fuentes"`
}

// Judgment is the LLM judge result
type Judgment struct {
	Score     float64    `json:"score"`
	Verdict   string     `json:"verdict"`
	Labels    []string   `json:"labels"`
	Rationale string     `json:"rationale"`
	Evidence  []Evidence `json:"evidence"`
	Checks    Checks     `json:"checks"`
	Provider  string     `json:"provider,omitempty"`
	Model     string     `json:"model,omitempty"`
	LatencyMS int64      `json:"latency_ms"`
}

// MLResult is the local classifier result
type MLResult struct {
	Verdict        string   `json:"ml_verdict"`
	Score          *float64 `json:"ml_score"`
	Confidence     *float64 `json:"ml_confidence"`
	FeaturesUsed   int      `json:"ml_features_used"`
	ModelAccuracy  *float64 `json:"ml_model_accuracy"`
	AnalysisMethod string   `json:"analysis_method,omitempty"`
}

// Analysis is a persisted verification record
type Analysis struct {
	ID          string      `json:"id" db:"id"`
	Source      string      `json:"source" db:"source"`
	Title       string      `json:"title" db:"title"`
	Body        string      `json:"body" db:"body"`
	Score       float64     `json:"score" db:"score"`
	Verdict     string      `json:"verdict" db:"verdict"`
	Labels      []string    `json:"labels" db:"-"`
	Rationale   string      `json:"rationale" db:"rationale"`
	Evidence    []Evidence  `json:"evidence" db:"-"`
	LLMScore    float64     `json:"llm_score" db:"llm_score"`
	MLScore     *float64    `json:"ml_score" db:"ml_score"`
	MLVerdict   string      `json:"ml_verdict" db:"ml_verdict"`
	Flags       []string    `json:"combination_flags" db:"-"`
	Explanation Explanation `json:"explanations" db:"-"`
	Model       string      `json:"model" db:"model"`
	LatencyMS   int64       `json:"latency_ms" db:"latency_ms"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// ReferenceArticle is a human-labeled article used only for calibration
type ReferenceArticle struct {
	ID        int64     `json:"id" db:"id"`
	Source    string    `json:"source" db:"source"`
	Title     string    `json:"title" db:"title"`
	Body      string    `json:"body" db:"body"`
	Label     string    `json:"label" db:"label"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CalibrationMatch links an analysis to a similar reference article
type CalibrationMatch struct {
	Reference     ReferenceArticle `json:"reference"`
	Similarity    float64          `json:"similarity"`
	VerifiedScore int              `json:"verified_score"`
}

// CalibrationItem is the per-analysis outcome of a calibration run
type CalibrationItem struct {
	AnalysisID      string  `json:"analysis_id"`
	OriginalScore   float64 `json:"original_score"`
	CalibratedScore float64 `json:"calibrated_score"`
	MatchesFound    int     `json:"matches_found"`
	Accuracy        int     `json:"accuracy"`
}

// CalibrationLogEntry is an append-only record of one calibration run
type CalibrationLogEntry struct {
	ID                 int64             `json:"id,omitempty"`
	Timestamp          time.Time         `json:"timestamp"`
	TotalAnalyses      int               `json:"total_analyses"`
	CalibratedAnalyses int               `json:"calibrated_analyses"`
	CalibrationRate    float64           `json:"calibration_rate"`
	AverageAccuracy    float64           `json:"average_accuracy"`
	Results            []CalibrationItem `json:"results"`
}

// FeedbackRecord is a user correction of a past analysis
type FeedbackRecord struct {
	ID              int64     `json:"id,omitempty" db:"id"`
	AnalysisID      string    `json:"analysis_id" db:"analysis_id"`
	OriginalScore   float64   `json:"original_score" db:"original_score"`
	CorrectScore    float64   `json:"correct_score" db:"correct_score"`
	OriginalVerdict string    `json:"original_verdict" db:"original_verdict"`
	CorrectVerdict  string    `json:"correct_verdict" db:"correct_verdict"`
	UserFeedback    string    `json:"user_feedback" db:"user_feedback"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
}

// RetrainResult reports the outcome of a retrain attempt
type RetrainResult struct {
	Trained       bool   `json:"trained"`
	FeedbackCount int    `json:"feedback_count"`
	Output        string `json:"output,omitempty"`
	Reason        string `json:"reason,omitempty"` // training_failed, no_feedback_file, insufficient_feedback, exception, already_running
	Error         string `json:"error,omitempty"`
}

// Retrain reason codes
const (
	ReasonTrainingFailed       = "training_failed"
	ReasonNoFeedbackFile       = "no_feedback_file"
	ReasonInsufficientFeedback = "insufficient_feedback"
	ReasonException            = "exception"
	ReasonAlreadyRunning       = "already_running"
)
