// Package ranking maintains the daily ranking snapshot workbook: one
// fixed-layout sheet per trading day, cloned from the newest sheet so
// the hand-tuned template formatting survives, then filled with the
// day's top symbols per category and the common-symbol highlight.
package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"unicode"

	"github.com/xuri/excelize/v2"

	"krxflow/internal/domain"
	apperrors "krxflow/internal/errors"
	"krxflow/internal/storage"
)

const (
	startRow = 5
	slotRows = 20

	monthCell   = "A3"
	dayCell     = "A5"
	weekdayCell = "B5"

	commonFillColor = "B4C6E7"
)

// slot is one category's column pair in the snapshot layout.
type slot struct {
	symbolCol string
	valueCol  string
	market    domain.Market
}

// layout maps category keys to their fixed columns. Column H separates
// the KOSPI block from the KOSDAQ block and is never written.
var layout = map[string]slot{
	"KOSPI_foreigner":     {"D", "E", domain.MarketKOSPI},
	"KOSPI_institutions":  {"F", "G", domain.MarketKOSPI},
	"KOSDAQ_foreigner":    {"I", "J", domain.MarketKOSDAQ},
	"KOSDAQ_institutions": {"K", "L", domain.MarketKOSDAQ},
}

// autofitColumns are the symbol columns whose width tracks content.
var autofitColumns = []string{"D", "F", "I", "K"}

// Engine writes daily snapshot sheets into the shared ranking workbook.
type Engine struct {
	store    storage.Store
	filePath string
	topN     int
	logger   *slog.Logger
}

// NewEngine creates a snapshot engine for the workbook at filePath.
func NewEngine(store storage.Store, filePath string, topN int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		filePath: filePath,
		topN:     topN,
		logger:   logger.With(slog.String("component", "ranking")),
	}
}

// CommonSymbols returns the symbols present in the top n of both the
// foreigner and institutions datasets of one market.
func CommonSymbols(foreign, inst *domain.CategoryDataset, n int) map[string]bool {
	common := make(map[string]bool)
	instSet := make(map[string]bool)
	for _, s := range inst.TopSymbols(n) {
		instSet[s] = true
	}
	for _, s := range foreign.TopSymbols(n) {
		if instSet[s] {
			common[s] = true
		}
	}
	return common
}

// UpdateSnapshot clones the newest sheet into a sheet named after the
// date, rewrites its headers and data block, and saves the workbook in
// one write. The template workbook must already exist; the engine never
// invents the layout.
func (e *Engine) UpdateSnapshot(ctx context.Context, date domain.Date, datasets map[string]*domain.CategoryDataset) error {
	log := e.logger.With(slog.String("date", date.String()))

	f, found, err := storage.OpenWorkbook(ctx, e.store, e.filePath)
	if err != nil {
		return apperrors.NewStorageError("load ranking workbook", err)
	}
	if !found {
		return apperrors.NewNotFoundError(fmt.Sprintf("ranking workbook %s", e.filePath))
	}
	defer f.Close()

	sheet := date.SheetKey()
	if idx, _ := f.GetSheetIndex(sheet); idx >= 0 {
		log.Warn("replacing existing snapshot sheet", slog.String("sheet", sheet))
		if err := f.DeleteSheet(sheet); err != nil {
			return apperrors.NewStorageError("drop stale snapshot sheet", err)
		}
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return apperrors.NewNotFoundError("ranking workbook template sheet")
	}
	source := sheets[len(sheets)-1]

	if err := e.cloneSheet(f, source, sheet); err != nil {
		return err
	}

	if err := f.SetCellValue(sheet, monthCell, fmt.Sprintf("%d 月", date.Month())); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, dayCell, fmt.Sprintf("%d 日", date.Day())); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, weekdayCell, date.KoreanWeekday()); err != nil {
		return err
	}

	if err := clearDataBlock(f, sheet); err != nil {
		return err
	}

	commonFill, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{commonFillColor}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	commonByMarket := map[domain.Market]map[string]bool{}
	for _, m := range domain.AllMarkets() {
		frn := datasets[domain.Category{Market: m, Investor: domain.InvestorForeigner}.Key()]
		inst := datasets[domain.Category{Market: m, Investor: domain.InvestorInstitutions}.Key()]
		commonByMarket[m] = CommonSymbols(frn, inst, e.topN)
	}

	for key, sl := range layout {
		ds := datasets[key]
		if ds.Empty() {
			continue
		}
		if err := e.pasteSlot(f, sheet, sl, ds, commonByMarket[sl.market], commonFill); err != nil {
			return err
		}
	}

	if err := autofit(f, sheet); err != nil {
		return err
	}

	if err := storage.SaveWorkbook(ctx, e.store, e.filePath, f); err != nil {
		return apperrors.NewStorageError("save ranking workbook", err)
	}

	log.Info("snapshot sheet written",
		slog.String("sheet", sheet),
		slog.Int("common_kospi", len(commonByMarket[domain.MarketKOSPI])),
		slog.Int("common_kosdaq", len(commonByMarket[domain.MarketKOSDAQ])))
	return nil
}

func (e *Engine) cloneSheet(f *excelize.File, source, target string) error {
	srcIdx, err := f.GetSheetIndex(source)
	if err != nil || srcIdx < 0 {
		return apperrors.NewStorageError("resolve template sheet", err)
	}
	dstIdx, err := f.NewSheet(target)
	if err != nil {
		return apperrors.NewStorageError("create snapshot sheet", err)
	}
	if err := f.CopySheet(srcIdx, dstIdx); err != nil {
		return apperrors.NewStorageError("clone template sheet", err)
	}
	return nil
}

// clearDataBlock blanks the D5:L24 values and fills left over from the
// cloned template. Only the fill is reset; borders and number formats
// belong to the template and stay.
func clearDataBlock(f *excelize.File, sheet string) error {
	startCol, _ := excelize.ColumnNameToNumber("D")
	endCol, _ := excelize.ColumnNameToNumber("L")
	unfilled := make(map[int]int)
	for col := startCol; col <= endCol; col++ {
		for row := startRow; row < startRow+slotRows; row++ {
			cell, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, nil); err != nil {
				return err
			}
			styleID, err := f.GetCellStyle(sheet, cell)
			if err != nil {
				return err
			}
			cleared, ok := unfilled[styleID]
			if !ok {
				st, err := f.GetStyle(styleID)
				if err != nil {
					return err
				}
				st.Fill = excelize.Fill{}
				if cleared, err = f.NewStyle(st); err != nil {
					return err
				}
				unfilled[styleID] = cleared
			}
			if err := f.SetCellStyle(sheet, cell, cell, cleared); err != nil {
				return err
			}
		}
	}
	return nil
}

// pasteSlot writes one category's top rows into its column pair and
// fills the symbols shared by both investor classes of the market.
func (e *Engine) pasteSlot(f *excelize.File, sheet string, sl slot, ds *domain.CategoryDataset, common map[string]bool, commonFill int) error {
	rows := ds.Rows
	if len(rows) > e.topN {
		rows = rows[:e.topN]
	}
	for i, r := range rows {
		row := startRow + i
		symCell := fmt.Sprintf("%s%d", sl.symbolCol, row)
		if err := f.SetCellValue(sheet, symCell, r.Symbol); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("%s%d", sl.valueCol, row), r.Value); err != nil {
			return err
		}
		if common[r.Symbol] {
			if err := f.SetCellStyle(sheet, symCell, symCell, commonFill); err != nil {
				return err
			}
		}
	}
	return nil
}

// autofit sizes the symbol columns to their widest value. Hangul and
// other wide runes count double, matching how they render.
func autofit(f *excelize.File, sheet string) error {
	for _, col := range autofitColumns {
		width := 8.0
		for row := startRow; row < startRow+slotRows; row++ {
			v, err := f.GetCellValue(sheet, fmt.Sprintf("%s%d", col, row))
			if err != nil {
				continue
			}
			if w := displayWidth(v) + 2.0; w > width {
				width = w
			}
		}
		if width > 40 {
			width = 40
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

func displayWidth(s string) float64 {
	var w float64
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) || unicode.Is(unicode.Han, r) {
			w += 2
		} else {
			w++
		}
	}
	return w
}

// SortedCommon returns the common set as a sorted slice for stable
// display.
func SortedCommon(common map[string]bool) []string {
	out := make([]string, 0, len(common))
	for s := range common {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
