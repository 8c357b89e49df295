// Package report writes the per-day artifacts that sit next to the
// cumulative ledgers: one spreadsheet per category per day, and the
// flat symbol list traders import into their terminal as a watchlist.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"

	"krxflow/internal/domain"
	apperrors "krxflow/internal/errors"
	"krxflow/internal/standardize"
	"krxflow/internal/storage"
)

// DailyWriter saves one workbook per category per day, e.g.
// "순매수/20251014코스피외국인순매수.xlsx".
type DailyWriter struct {
	store  storage.Store
	dir    string
	logger *slog.Logger
}

// NewDailyWriter creates a writer targeting dir in the store.
func NewDailyWriter(store storage.Store, dir string, logger *slog.Logger) *DailyWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DailyWriter{store: store, dir: dir, logger: logger.With(slog.String("component", "daily_report"))}
}

// FileName returns the daily report file name for a dataset.
func (w *DailyWriter) FileName(cat domain.Category, date domain.Date) string {
	return fmt.Sprintf("%s%s순매수.xlsx", date.String(), cat.KoreanName())
}

// Save writes the dataset as a standalone workbook. Empty datasets are
// skipped and reported via the bool return.
func (w *DailyWriter) Save(ctx context.Context, ds *domain.CategoryDataset) (bool, error) {
	if ds.Empty() {
		w.logger.Warn("empty dataset, daily report skipped",
			slog.String("category", ds.Category.Key()))
		return false, nil
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetList()[0]

	hasCode := false
	for _, r := range ds.Rows {
		if r.Code != "" {
			hasCode = true
			break
		}
	}

	header := []interface{}{standardize.SymbolHeader, standardize.ValueHeader}
	if hasCode {
		header = []interface{}{standardize.CodeHeader, standardize.SymbolHeader, standardize.ValueHeader}
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return false, err
	}

	// Thousands separators keep the files readable without opening
	// the cell format dialog.
	numStyle, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return false, err
	}

	for i, r := range ds.Rows {
		row := []interface{}{r.Symbol, r.Value}
		if hasCode {
			row = []interface{}{r.Code, r.Symbol, r.Value}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return false, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return false, err
		}
		valCell, err := excelize.CoordinatesToCellName(len(row), i+2)
		if err != nil {
			return false, err
		}
		if err := f.SetCellStyle(sheet, valCell, valCell, numStyle); err != nil {
			return false, err
		}
	}

	filePath := path.Join(w.dir, w.FileName(ds.Category, ds.Date))
	if err := storage.SaveWorkbook(ctx, w.store, filePath, f); err != nil {
		return false, apperrors.NewStorageError("save daily report", err).
			WithContext("category", ds.Category.Key())
	}
	w.logger.Info("daily report written",
		slog.String("category", ds.Category.Key()),
		slog.String("file", filePath),
		slog.Int("rows", len(ds.Rows)))
	return true, nil
}

// WatchlistWriter exports the day's top symbols as a one-column CSV in
// the fixed report order, ready for terminal import.
type WatchlistWriter struct {
	store  storage.Store
	dir    string
	topN   int
	logger *slog.Logger
}

// NewWatchlistWriter creates a writer keeping topN symbols per category.
func NewWatchlistWriter(store storage.Store, dir string, topN int, logger *slog.Logger) *WatchlistWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WatchlistWriter{store: store, dir: dir, topN: topN, logger: logger.With(slog.String("component", "watchlist"))}
}

// Save writes "<date>_일별상위종목.csv". Categories appear in report
// order; categories without data contribute nothing. Returns false when
// no category had symbols.
func (w *WatchlistWriter) Save(ctx context.Context, date domain.Date, datasets map[string]*domain.CategoryDataset) (bool, error) {
	var symbols []string
	for _, cat := range domain.ReportOrder() {
		ds := datasets[cat.Key()]
		symbols = append(symbols, ds.TopSymbols(w.topN)...)
	}
	if len(symbols) == 0 {
		w.logger.Warn("no symbols to export, watchlist skipped")
		return false, nil
	}

	var b strings.Builder
	// BOM keeps Hangul intact when the CSV lands in Excel.
	b.WriteString("\uFEFF")
	b.WriteString(standardize.SymbolHeader + "\n")
	for _, s := range symbols {
		b.WriteString(s + "\n")
	}

	filePath := path.Join(w.dir, fmt.Sprintf("%s_일별상위종목.csv", date.String()))
	if err := w.store.Write(ctx, filePath, []byte(b.String())); err != nil {
		return false, apperrors.NewStorageError("save watchlist", err)
	}
	w.logger.Info("watchlist written",
		slog.String("file", filePath),
		slog.Int("symbols", len(symbols)))
	return true, nil
}
