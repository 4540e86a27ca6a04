// Package dataset reads labeled reference articles from spreadsheets and
// exports analysis history as CSV.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/zombar/newscheck/internal/models"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// Dataset is the parsed content of an uploaded file
type Dataset struct {
	Articles []models.ReferenceArticle
	// Labeled reports whether the file has a label column
	Labeled bool
	// Skipped counts rows dropped for having no title
	Skipped int
}

// column aliases accepted in header rows, Spanish first
var columnAliases = map[string]string{
	"titulo":   "title",
	"título":   "title",
	"title":    "title",
	"cuerpo":   "body",
	"body":     "body",
	"texto":    "body",
	"fuente":   "source",
	"source":   "source",
	"etiqueta": "label",
	"label":    "label",
}

// ReadFile reads a .csv or .xlsx dataset from disk
func ReadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return Read(f, filepath.Base(path))
}

// Read parses r according to the extension of filename
func Read(r io.Reader, filename string) (*Dataset, error) {
	var rows [][]string
	var err error

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		rows, err = readCSV(r)
	case ".xlsx":
		rows, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	ds := processRows(rows)
	slog.Info("dataset parsed",
		"file", filename,
		"articles", len(ds.Articles),
		"skipped", ds.Skipped,
		"labeled", ds.Labeled,
	)
	return ds, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// readXLSX reads the first sheet of the workbook
func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func processRows(rows [][]string) *Dataset {
	ds := &Dataset{Articles: []models.ReferenceArticle{}}
	if len(rows) == 0 {
		return ds
	}

	index := map[string]int{}
	for i, header := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")))
		if field, ok := columnAliases[key]; ok {
			if _, seen := index[field]; !seen {
				index[field] = i
			}
		}
	}
	_, ds.Labeled = index["label"]

	cell := func(row []string, field string) string {
		i, ok := index[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	now := time.Now().UTC()
	for _, row := range rows[1:] {
		title := cell(row, "title")
		if title == "" {
			ds.Skipped++
			continue
		}
		ds.Articles = append(ds.Articles, models.ReferenceArticle{
			Title:     title,
			Body:      cell(row, "body"),
			Source:    cell(row, "source"),
			Label:     strings.ToLower(cell(row, "label")),
			CreatedAt: now,
		})
	}
	return ds
}
