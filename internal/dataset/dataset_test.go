package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/zombar/newscheck/internal/models"
)

func TestReadCSVSpanishHeaders(t *testing.T) {
	input := "\ufeffTitulo,Cuerpo,Fuente,Etiqueta\n" +
		"Vacuna contiene microchips,Mensaje viral,whatsapp,FALSA\n" +
		",sin titulo,blog,dudosa\n" +
		"Selección gana campeonato,\"Equipo celebra, con comas\",diario,verdadera\n"

	ds, err := Read(strings.NewReader(input), "corpus.CSV")
	require.NoError(t, err)

	assert.True(t, ds.Labeled)
	assert.Equal(t, 1, ds.Skipped)
	require.Len(t, ds.Articles, 2)
	assert.Equal(t, "Vacuna contiene microchips", ds.Articles[0].Title)
	assert.Equal(t, "falsa", ds.Articles[0].Label)
	assert.Equal(t, "whatsapp", ds.Articles[0].Source)
	assert.Equal(t, "Equipo celebra, con comas", ds.Articles[1].Body)
}

func TestReadCSVEnglishHeadersUnlabeled(t *testing.T) {
	input := "title,body,source\nHeadline,Text,bbc\n"

	ds, err := Read(strings.NewReader(input), "news.csv")
	require.NoError(t, err)

	assert.False(t, ds.Labeled)
	require.Len(t, ds.Articles, 1)
	assert.Equal(t, "", ds.Articles[0].Label)
}

func TestReadShortRows(t *testing.T) {
	input := "etiqueta,titulo,cuerpo\nreal,Solo titulo\n"

	ds, err := Read(strings.NewReader(input), "short.csv")
	require.NoError(t, err)
	require.Len(t, ds.Articles, 1)
	assert.Equal(t, "Solo titulo", ds.Articles[0].Title)
	assert.Equal(t, "", ds.Articles[0].Body)
	assert.Equal(t, "real", ds.Articles[0].Label)
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"fuente", "titulo", "cuerpo", "etiqueta"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"diario", "Gobierno anuncia medidas", "Cuerpo", "verdadera"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"blog", "Curan el cáncer con limón", "", "fake"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "dataset.xlsx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	ds, err := ReadFile(path)
	require.NoError(t, err)
	assert.True(t, ds.Labeled)
	require.Len(t, ds.Articles, 2)
	assert.Equal(t, "Gobierno anuncia medidas", ds.Articles[0].Title)
	assert.Equal(t, "fake", ds.Articles[1].Label)
}

func TestReadUnsupported(t *testing.T) {
	_, err := Read(strings.NewReader("{}"), "data.json")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestReadEmpty(t *testing.T) {
	ds, err := Read(strings.NewReader(""), "empty.csv")
	require.NoError(t, err)
	assert.Empty(t, ds.Articles)
	assert.False(t, ds.Labeled)
}

func TestWriteCSV(t *testing.T) {
	created := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	analyses := []models.Analysis{
		{
			ID: "a1", CreatedAt: created, Source: "diario", Title: `Dice "hola", adiós`,
			Score: 86, Verdict: "true_claim", Labels: []string{"verificado", "consenso"},
			Rationale: "ok", LatencyMS: 1200, Model: "groq + ml",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, analyses))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\r\n"), "\r\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,created_at,source,title,score,verdict,labels,rationale,latency_ms,model", lines[0])
	assert.Equal(t, `a1,2025-03-04T05:06:07Z,diario,"Dice ""hola"", adiós",86,true_claim,verificado|consenso,ok,1200,groq + ml`, lines[1])
}
