// Package standardize turns one raw per-category spreadsheet download
// into a canonical top-N (symbol, value) table. Column positions are
// never assumed: the net-flow value column is located by header
// keywords with a numeric-column fallback, and required columns are
// verified before any row is read.
package standardize

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"krxflow/internal/domain"
)

// Canonical column headers of the standardized output shape.
const (
	SymbolHeader = "종목명"
	CodeHeader   = "종목코드"
	ValueHeader  = "순매수대금(천원)"
)

// valueKeywords must all appear (case-insensitive) in a header for the
// column to be picked as the net-flow value column.
var valueKeywords = []string{"순매수", "거래대금"}

// ErrMissingValueColumn is returned when neither the keyword scan nor
// the numeric-column fallback finds a usable value column.
var ErrMissingValueColumn = fmt.Errorf("no usable value column in dataset")

// MissingColumnError reports required columns absent from the header.
type MissingColumnError struct {
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("required columns missing: %s", strings.Join(e.Columns, ", "))
}

// Standardizer converts raw downloads into CategoryDatasets.
type Standardizer struct {
	topN   int
	logger *slog.Logger
}

// New creates a Standardizer keeping the top topN rows per dataset.
func New(topN int, logger *slog.Logger) *Standardizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Standardizer{topN: topN, logger: logger}
}

// Standardize parses one raw xlsx payload for one category. An empty or
// unparseable payload yields an empty dataset, not an error: that is the
// expected shape for non-trading days. Structural problems in a payload
// that did parse (no value column, no symbol column) are errors.
func (s *Standardizer) Standardize(raw []byte, cat domain.Category, date domain.Date) (*domain.CategoryDataset, error) {
	ds := &domain.CategoryDataset{Category: cat, Date: date}

	if len(raw) == 0 {
		s.logger.Info("empty raw payload, returning empty dataset",
			slog.String("category", cat.Key()),
			slog.String("date", date.String()))
		return ds, nil
	}

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		s.logger.Warn("raw payload not parseable as xlsx, returning empty dataset",
			slog.String("category", cat.Key()),
			slog.String("error", err.Error()))
		return ds, nil
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ds, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil || len(rows) == 0 {
		return ds, nil
	}

	header := rows[0]
	data := rows[1:]

	valueCol := findValueColumn(header, data)
	if valueCol < 0 {
		return nil, ErrMissingValueColumn
	}

	symbolCol := findColumn(header, SymbolHeader)
	if symbolCol < 0 {
		return nil, &MissingColumnError{Columns: []string{SymbolHeader}}
	}
	codeCol := findColumn(header, CodeHeader)

	for _, row := range data {
		if symbolCol >= len(row) {
			continue
		}
		symbol := strings.TrimSpace(row[symbolCol])
		if symbol == "" {
			continue
		}
		r := domain.RankedRow{Symbol: symbol}
		if valueCol < len(row) {
			r.Value = domain.ParseValue(row[valueCol])
		}
		if codeCol >= 0 && codeCol < len(row) {
			r.Code = strings.TrimSpace(row[codeCol])
		}
		ds.Rows = append(ds.Rows, r)
	}

	// Ties keep source order so reruns reproduce the same cut.
	sort.SliceStable(ds.Rows, func(i, j int) bool {
		return ds.Rows[i].Value > ds.Rows[j].Value
	})
	if len(ds.Rows) > s.topN {
		ds.Rows = ds.Rows[:s.topN]
	}

	s.logger.Debug("dataset standardized",
		slog.String("category", cat.Key()),
		slog.Int("rows", len(ds.Rows)))

	return ds, nil
}

// findValueColumn scans headers for one containing every keyword; when
// none matches it falls back to the last column whose cells are all
// numeric. Returns -1 when no candidate exists.
func findValueColumn(header []string, data [][]string) int {
	for j, h := range header {
		lower := strings.ToLower(strings.TrimSpace(h))
		match := true
		for _, kw := range valueKeywords {
			if !strings.Contains(lower, kw) {
				match = false
				break
			}
		}
		if match {
			return j
		}
	}

	for j := len(header) - 1; j >= 0; j-- {
		if isNumericColumn(data, j) {
			return j
		}
	}
	return -1
}

// isNumericColumn reports whether column j holds at least one value and
// nothing that fails to parse as a number.
func isNumericColumn(data [][]string, j int) bool {
	seen := false
	for _, row := range data {
		if j >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[j])
		if cell == "" {
			continue
		}
		if !domain.IsNumeric(cell) {
			return false
		}
		seen = true
	}
	return seen
}

// findColumn returns the index of the header equal to name, or -1.
func findColumn(header []string, name string) int {
	for j, h := range header {
		if strings.TrimSpace(h) == name {
			return j
		}
	}
	return -1
}
