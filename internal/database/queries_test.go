package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/newscheck/internal/models"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestAnalysis(id string, minutes int) *models.Analysis {
	ml := 80.0
	return &models.Analysis{
		ID:        id,
		Source:    "diario",
		Title:     "Gobierno anuncia plan " + id,
		Body:      "El plan incluye nuevas medidas",
		Score:     86,
		Verdict:   string(models.VerdictTrue),
		Labels:    []string{"verificado"},
		Rationale: "Fuentes coinciden",
		Evidence: []models.Evidence{
			{Claim: "plan anunciado", Assessment: "confirmado", Sources: []string{"boletín oficial"}},
		},
		LLMScore:  90,
		MLScore:   &ml,
		MLVerdict: "real",
		Flags:     []string{"consensus_true"},
		Explanation: models.Explanation{
			Simple:         "Parece confiable",
			Factors:        []string{"consenso"},
			Recommendation: models.RecommendShare,
			Confidence:     models.ConfidenceHigh,
		},
		Model:     "groq-llama + ml",
		LatencyMS: 1500,
		CreatedAt: baseTime.Add(time.Duration(minutes) * time.Minute),
	}
}

func TestSaveAndGetAnalysis(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	want := newTestAnalysis("a1", 0)
	require.NoError(t, db.SaveAnalysis(ctx, want))

	got, err := db.GetAnalysis(ctx, "a1")
	require.NoError(t, err)

	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Labels, got.Labels)
	assert.Equal(t, want.Evidence, got.Evidence)
	assert.Equal(t, want.Flags, got.Flags)
	assert.Equal(t, want.Explanation, got.Explanation)
	require.NotNil(t, got.MLScore)
	assert.InDelta(t, 80.0, *got.MLScore, 0.0001)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, int64(1500), got.LatencyMS)
}

func TestSaveAnalysisNilCollections(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	a := &models.Analysis{ID: "bare", Score: 50, Verdict: string(models.VerdictDoubtful)}
	require.NoError(t, db.SaveAnalysis(ctx, a))
	assert.False(t, a.CreatedAt.IsZero())

	got, err := db.GetAnalysis(ctx, "bare")
	require.NoError(t, err)
	assert.Empty(t, got.Labels)
	assert.Nil(t, got.MLScore)
}

func TestSaveAnalysisDuplicateID(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	require.NoError(t, db.SaveAnalysis(ctx, newTestAnalysis("dup", 0)))
	assert.Error(t, db.SaveAnalysis(ctx, newTestAnalysis("dup", 1)))
}

func TestGetAnalysisNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetAnalysis(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAnalysesNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, db.SaveAnalysis(ctx, newTestAnalysis(fmt.Sprintf("a%d", i), i)))
	}

	page, err := db.ListAnalyses(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "a4", page[0].ID)
	assert.Equal(t, "a3", page[1].ID)

	page, err = db.ListAnalyses(ctx, 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a0", page[0].ID)

	recent, err := db.RecentAnalyses(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	all, err := db.AllAnalyses(ctx)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "a0", all[0].ID)

	n, err := db.CountAnalyses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestSearchAnalyses(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	vaccine := newTestAnalysis("v", 0)
	vaccine.Title = "Vacuna contiene microchips"
	vaccine.Source = "whatsapp"
	require.NoError(t, db.SaveAnalysis(ctx, vaccine))
	require.NoError(t, db.SaveAnalysis(ctx, newTestAnalysis("g", 1)))

	tests := []struct {
		query string
		want  []string
	}{
		{"microchips", []string{"v"}},
		{"whatsapp", []string{"v"}},
		{"medidas", []string{"g", "v"}},
		{"nada", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := db.SearchAnalyses(ctx, tt.query, 10)
			require.NoError(t, err)
			var ids []string
			for _, a := range got {
				ids = append(ids, a.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestReferenceArticlesDeduplicated(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	batch := []models.ReferenceArticle{
		{Title: "Vacuna contiene microchips", Source: "whatsapp", Label: "falsa"},
		{Title: "Vacuna contiene microchips", Source: "whatsapp", Label: "falsa"},
		{Title: "Vacuna contiene microchips", Source: "twitter", Label: "falsa"},
	}
	inserted, err := db.InsertReferenceArticles(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	inserted, err = db.InsertReferenceArticles(ctx, batch[:1])
	require.NoError(t, err)
	assert.Zero(t, inserted)

	articles, err := db.ListReferenceArticles(ctx)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "whatsapp", articles[0].Source)
	assert.NotZero(t, articles[0].ID)
	assert.False(t, articles[0].CreatedAt.IsZero())

	n, err := db.CountReferenceArticles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestListReferenceArticlesEmpty(t *testing.T) {
	db := setupTestDB(t)

	articles, err := db.ListReferenceArticles(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, articles)
	assert.Empty(t, articles)
}

func TestFeedback(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	n, err := db.CountFeedback(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	for i := 0; i < 3; i++ {
		rec := &models.FeedbackRecord{
			AnalysisID:      fmt.Sprintf("a%d", i),
			OriginalScore:   86,
			CorrectScore:    10,
			OriginalVerdict: "true_claim",
			CorrectVerdict:  "false_claim",
			UserFeedback:    "es falsa",
			Timestamp:       baseTime.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, db.SaveFeedback(ctx, rec))
		assert.Equal(t, int64(i+1), rec.ID)
	}

	n, err = db.CountFeedback(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	records, err := db.ListFeedback(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "a0", records[0].AnalysisID)
	assert.Equal(t, "false_claim", records[2].CorrectVerdict)
	assert.True(t, baseTime.Add(2*time.Hour).Equal(records[2].Timestamp))
}

func TestCalibrationLogs(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	for i := 0; i < 4; i++ {
		entry := &models.CalibrationLogEntry{
			Timestamp:          baseTime.Add(time.Duration(i) * time.Hour),
			TotalAnalyses:      10,
			CalibratedAnalyses: i,
			CalibrationRate:    float64(i) * 10,
			AverageAccuracy:    75,
			Results: []models.CalibrationItem{
				{AnalysisID: "a1", OriginalScore: 86, CalibratedScore: 50, MatchesFound: 1, Accuracy: 64},
			},
		}
		require.NoError(t, db.AppendCalibrationLog(ctx, entry))
		assert.NotZero(t, entry.ID)
	}

	logs, err := db.ListCalibrationLogs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, 3, logs[0].CalibratedAnalyses)
	assert.Equal(t, 2, logs[1].CalibratedAnalyses)
	require.Len(t, logs[0].Results, 1)
	assert.Equal(t, 64, logs[0].Results[0].Accuracy)

	empty := &models.CalibrationLogEntry{TotalAnalyses: 0}
	require.NoError(t, db.AppendCalibrationLog(ctx, empty))
	logs, err = db.ListCalibrationLogs(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, logs[0].Results)
	assert.Empty(t, logs[0].Results)
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	require.NoError(t, db.SaveAnalysis(ctx, newTestAnalysis("a1", 0)))
	require.NoError(t, db.SaveFeedback(ctx, &models.FeedbackRecord{AnalysisID: "a1"}))
	_, err := db.InsertReferenceArticles(ctx, []models.ReferenceArticle{{Title: "t"}})
	require.NoError(t, err)

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Analyses: 1, Feedback: 1, ReferenceArticles: 1}, stats)
}
