// Package ledger maintains the per-category cumulative net-flow
// workbooks. Each category has one workbook per year; a month sheet
// ("OCT") accumulates raw (date, symbol, value) rows and a per-day
// sheet ("1014") holds the pivot view with a running total column.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"krxflow/internal/domain"
	apperrors "krxflow/internal/errors"
	"krxflow/internal/storage"
)

// Raw sheet header, written on row 2 with row 1 left blank.
var rawHeader = []interface{}{"일자", "종목", "금액"}

const (
	totalColumn  = "총계"
	symbolLabel  = "종목"
	pivotDataRow = 5 // first data row of a pivot sheet

	headerFillColor = "DDEBF7"
	leaderFontColor = "FF0000"
	leaderRows      = 30
	colAWidth       = 22.86
)

// Fill colors for the top five entries of the day, strongest first.
var topFillColors = [5]string{"FF0000", "FFC000", "FFFF00", "92D050", "00B0F0"}

// Engine appends daily rankings to category ledgers and keeps the
// per-day pivot sheets consistent with the accumulated raw data.
type Engine struct {
	store  storage.Store
	dir    string
	topN   int
	logger *slog.Logger
}

// NewEngine creates a ledger engine writing under dir in the store.
// Rankings returned by Update and AlreadyProcessed are capped at topN
// rows; zero means uncapped.
func NewEngine(store storage.Store, dir string, topN int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, dir: dir, topN: topN, logger: logger.With(slog.String("component", "ledger"))}
}

// FilePath returns the workbook path for a category and year,
// e.g. "순매수도/코스피외국인순매수도(2025).xlsx".
func (e *Engine) FilePath(cat domain.Category, date domain.Date) string {
	name := fmt.Sprintf("%s순매수도(%d).xlsx", cat.KoreanName(), date.Year())
	return path.Join(e.dir, name)
}

// AlreadyProcessed reports whether the pivot sheet for date already
// exists in the category workbook, and when it does, returns the day's
// stored ranking without touching the file. This is the cheap
// idempotence check the pipeline runs before any write.
func (e *Engine) AlreadyProcessed(ctx context.Context, cat domain.Category, date domain.Date) (bool, []domain.RankedRow, error) {
	f, found, err := storage.OpenWorkbook(ctx, e.store, e.FilePath(cat, date))
	if err != nil {
		return false, nil, apperrors.NewStorageError("load ledger workbook", err)
	}
	if !found {
		return false, nil, nil
	}
	defer f.Close()

	sheet := date.SheetKey()
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return false, nil, nil
	}

	rows, err := readPivotRanking(f, sheet, date, e.topN)
	if err != nil {
		return false, nil, err
	}
	return true, rows, nil
}

// Update appends the day's rows to the month sheet (unless the date is
// already present) and recomputes the per-day pivot sheet from the full
// raw data. The pivot is always rewritten so a run interrupted between
// the two writes heals on retry. The returned ranking is the date's
// column of the fresh pivot in running-total order, the same shape
// AlreadyProcessed reads back from a stored sheet.
func (e *Engine) Update(ctx context.Context, cat domain.Category, ds *domain.CategoryDataset, date domain.Date) ([]domain.RankedRow, error) {
	filePath := e.FilePath(cat, date)
	log := e.logger.With(
		slog.String("category", cat.Key()),
		slog.String("date", date.String()),
		slog.String("file", filePath),
	)

	f, found, err := storage.OpenWorkbook(ctx, e.store, filePath)
	if err != nil {
		return nil, apperrors.NewStorageError("load ledger workbook", err)
	}
	if !found {
		f = excelize.NewFile()
	}
	defer f.Close()

	rawSheet := date.MonthSheet()
	existing, sheetExists, err := readRawRows(f, rawSheet)
	if err != nil {
		return nil, err
	}

	if containsDate(existing, date.Int()) {
		log.Warn("date already present in raw sheet, skipping append")
	} else if !ds.Empty() {
		if err := appendRawRows(f, rawSheet, sheetExists, ds, date); err != nil {
			return nil, err
		}
		for _, r := range ds.Rows {
			existing = append(existing, domain.LedgerRow{Date: date.Int(), Symbol: r.Symbol, Value: r.Value})
		}
	} else if !sheetExists {
		log.Info("no data and no existing ledger, nothing to write")
		return nil, nil
	}

	dates, pivot := computePivot(existing)
	if err := writePivotSheet(f, rawSheet, date, dates, pivot); err != nil {
		return nil, err
	}
	dropDefaultSheet(f)

	if err := storage.SaveWorkbook(ctx, e.store, filePath, f); err != nil {
		return nil, apperrors.NewStorageError("save ledger workbook", err)
	}
	log.Info("ledger updated", slog.Int("raw_rows", len(existing)))
	return rankingFor(date, pivot, e.topN), nil
}

// rankingFor extracts the date's column from the pivot, keeping the
// pivot's running-total order. A zero limit keeps every row.
func rankingFor(date domain.Date, pivot []pivotRow, limit int) []domain.RankedRow {
	var out []domain.RankedRow
	for _, p := range pivot {
		v, ok := p.values[date.Int()]
		if !ok {
			continue
		}
		out = append(out, domain.RankedRow{Symbol: p.symbol, Value: v})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// dropDefaultSheet removes the sheet excelize creates in new workbooks
// once real sheets exist.
func dropDefaultSheet(f *excelize.File) {
	if len(f.GetSheetList()) > 1 {
		if idx, _ := f.GetSheetIndex("Sheet1"); idx >= 0 {
			_ = f.DeleteSheet("Sheet1")
		}
	}
}

// readRawRows reads the month sheet into ledger rows. Row 1 is blank
// and row 2 is the header, so data starts at row 3.
func readRawRows(f *excelize.File, sheet string) ([]domain.LedgerRow, bool, error) {
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, false, nil
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, true, apperrors.NewParsingError(fmt.Sprintf("read raw sheet %s", sheet), err)
	}

	var out []domain.LedgerRow
	for i, row := range rows {
		if i < 2 || len(row) < 2 {
			continue
		}
		dateInt, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			continue
		}
		r := domain.LedgerRow{Date: dateInt, Symbol: strings.TrimSpace(row[1])}
		if len(row) > 2 {
			r.Value = domain.ParseValue(row[2])
		}
		out = append(out, r)
	}
	return out, true, nil
}

func containsDate(rows []domain.LedgerRow, dateInt int) bool {
	for _, r := range rows {
		if r.Date == dateInt {
			return true
		}
	}
	return false
}

// appendRawRows writes the day's rows after the last used row, creating
// the sheet with its offset header when absent.
func appendRawRows(f *excelize.File, sheet string, sheetExists bool, ds *domain.CategoryDataset, date domain.Date) error {
	start := 3
	if sheetExists {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return apperrors.NewParsingError(fmt.Sprintf("read raw sheet %s", sheet), err)
		}
		start = len(rows) + 1
		if start < 3 {
			start = 3
		}
	} else {
		if _, err := f.NewSheet(sheet); err != nil {
			return apperrors.NewStorageError("create raw sheet", err)
		}
		if err := f.SetSheetRow(sheet, "A2", &rawHeader); err != nil {
			return apperrors.NewStorageError("write raw header", err)
		}
	}

	for i, r := range ds.Rows {
		row := []interface{}{date.Int(), r.Symbol, r.Value}
		cell, err := excelize.CoordinatesToCellName(1, start+i)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return apperrors.NewStorageError("append raw row", err)
		}
	}
	return nil
}

// pivotRow is one line of the recomputed pivot view.
type pivotRow struct {
	symbol string
	values map[int]float64
	total  float64
}

// computePivot groups raw rows by symbol, sums per date, and orders by
// running total descending with symbol name breaking ties.
func computePivot(rows []domain.LedgerRow) (dates []int, pivot []pivotRow) {
	seenDates := make(map[int]bool)
	bySymbol := make(map[string]map[int]float64)
	for _, r := range rows {
		if !seenDates[r.Date] {
			seenDates[r.Date] = true
			dates = append(dates, r.Date)
		}
		if bySymbol[r.Symbol] == nil {
			bySymbol[r.Symbol] = make(map[int]float64)
		}
		bySymbol[r.Symbol][r.Date] += r.Value
	}
	sort.Ints(dates)

	for sym, vals := range bySymbol {
		var total float64
		for _, v := range vals {
			total += v
		}
		pivot = append(pivot, pivotRow{symbol: sym, values: vals, total: total})
	}
	sort.Slice(pivot, func(i, j int) bool {
		return pivot[i].symbol < pivot[j].symbol
	})
	sort.SliceStable(pivot, func(i, j int) bool {
		return pivot[i].total > pivot[j].total
	})
	return dates, pivot
}

// writePivotSheet rewrites the per-day pivot sheet from the computed
// pivot and applies the standard formatting. The sheet is placed before
// the raw sheet so day views come first in the tab bar.
func writePivotSheet(f *excelize.File, rawSheet string, date domain.Date, dates []int, pivot []pivotRow) error {
	sheet := date.SheetKey()
	if idx, _ := f.GetSheetIndex(sheet); idx >= 0 {
		if err := f.DeleteSheet(sheet); err != nil {
			return apperrors.NewStorageError("drop stale pivot sheet", err)
		}
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return apperrors.NewStorageError("create pivot sheet", err)
	}
	if idx, _ := f.GetSheetIndex(rawSheet); idx >= 0 {
		_ = f.MoveSheet(sheet, rawSheet)
	}

	if err := f.SetColWidth(sheet, "A", "A", colAWidth); err != nil {
		return err
	}

	if len(pivot) == 0 {
		return nil
	}

	// Rows 1-2 stay blank. Row 3 carries the date columns plus the
	// total, row 4 the index label, data starts at row 5.
	header := make([]interface{}, 0, len(dates)+2)
	header = append(header, nil)
	for _, d := range dates {
		header = append(header, d)
	}
	header = append(header, totalColumn)
	if err := f.SetSheetRow(sheet, "A3", &header); err != nil {
		return err
	}
	label := []interface{}{symbolLabel}
	if err := f.SetSheetRow(sheet, "A4", &label); err != nil {
		return err
	}

	for i, p := range pivot {
		row := make([]interface{}, 0, len(dates)+2)
		row = append(row, p.symbol)
		for _, d := range dates {
			if v, ok := p.values[d]; ok {
				row = append(row, v)
			} else {
				row = append(row, nil)
			}
		}
		row = append(row, p.total)
		cell, err := excelize.CoordinatesToCellName(1, pivotDataRow+i)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	return stylePivotSheet(f, sheet, date, dates, pivot)
}

// stylePivotSheet applies the header fill, the red leader font and the
// top-five highlight for the current date's column.
func stylePivotSheet(f *excelize.File, sheet string, date domain.Date, dates []int, pivot []pivotRow) error {
	maxCol := len(dates) + 2

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerFillColor}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	dateFmt := "yyyymmdd"
	headerDateStyle, err := f.NewStyle(&excelize.Style{
		Fill:         excelize.Fill{Type: "pattern", Color: []string{headerFillColor}, Pattern: 1},
		CustomNumFmt: &dateFmt,
	})
	if err != nil {
		return err
	}

	topLeft, _ := excelize.CoordinatesToCellName(1, 3)
	topRight, _ := excelize.CoordinatesToCellName(maxCol, 3)
	if err := f.SetCellStyle(sheet, topLeft, topRight, headerStyle); err != nil {
		return err
	}
	botLeft, _ := excelize.CoordinatesToCellName(1, 4)
	botRight, _ := excelize.CoordinatesToCellName(maxCol, 4)
	if err := f.SetCellStyle(sheet, botLeft, botRight, headerDateStyle); err != nil {
		return err
	}

	leaderStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: leaderFontColor},
	})
	if err != nil {
		return err
	}
	end := pivotDataRow + leaderRows - 1
	if last := pivotDataRow + len(pivot) - 1; last < end {
		end = last
	}
	startCell, _ := excelize.CoordinatesToCellName(1, pivotDataRow)
	endCell, _ := excelize.CoordinatesToCellName(1, end)
	if err := f.SetCellStyle(sheet, startCell, endCell, leaderStyle); err != nil {
		return err
	}

	return highlightDayLeaders(f, sheet, date, dates, pivot)
}

// highlightDayLeaders fills the current date's cells for the five
// largest positive values of the day.
func highlightDayLeaders(f *excelize.File, sheet string, date domain.Date, dates []int, pivot []pivotRow) error {
	col := -1
	for i, d := range dates {
		if d == date.Int() {
			col = i + 2 // A is the symbol column
			break
		}
	}
	if col < 0 {
		return nil
	}

	type leader struct {
		row   int
		value float64
	}
	var leaders []leader
	for i, p := range pivot {
		if v, ok := p.values[date.Int()]; ok && v > 0 {
			leaders = append(leaders, leader{row: pivotDataRow + i, value: v})
		}
	}
	sort.SliceStable(leaders, func(i, j int) bool { return leaders[i].value > leaders[j].value })
	if len(leaders) > len(topFillColors) {
		leaders = leaders[:len(topFillColors)]
	}

	for i, l := range leaders {
		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{topFillColors[i]}, Pattern: 1},
		})
		if err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(col, l.row)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

// readPivotRanking extracts the ranking for one date from a stored
// pivot sheet, preserving the stored (running total) order. A zero
// limit keeps every row.
func readPivotRanking(f *excelize.File, sheet string, date domain.Date, limit int) ([]domain.RankedRow, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("read pivot sheet %s", sheet), err)
	}
	if len(rows) < 3 {
		return nil, nil
	}

	header := rows[2]
	col := -1
	for j := 1; j < len(header); j++ {
		if n, err := strconv.Atoi(strings.TrimSpace(header[j])); err == nil && n == date.Int() {
			col = j
			break
		}
	}
	if col < 0 {
		return nil, nil
	}

	var out []domain.RankedRow
	for i := pivotDataRow - 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		r := domain.RankedRow{Symbol: strings.TrimSpace(row[0])}
		if col < len(row) && strings.TrimSpace(row[col]) != "" {
			r.Value = domain.ParseValue(row[col])
			out = append(out, r)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
