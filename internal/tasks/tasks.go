// Package tasks holds the pipeline steps of the daily net-flow run:
// trading-day gate, fetch, standardize, daily reports, ledgers, ranking
// snapshot and watchlist export. Each task reads its inputs from the
// shared pipeline context and returns only the keys it produced.
package tasks

import (
	"context"
	"fmt"

	"krxflow/internal/domain"
	"krxflow/internal/fetch"
	"krxflow/internal/ledger"
	"krxflow/internal/pipeline"
	"krxflow/internal/ranking"
	"krxflow/internal/report"
	"krxflow/internal/standardize"
	"krxflow/internal/tradingday"
)

// Context keys produced by the tasks in this package.
const (
	// KeyRawPayloads holds map[string][]byte: category key → raw xlsx.
	KeyRawPayloads = "raw_payloads"
	// KeyDatasets holds map[string]*domain.CategoryDataset.
	KeyDatasets = "datasets"
	// KeyLedgerRankings holds map[string][]domain.RankedRow: category
	// key → the day's ledger ranking in running-total order.
	KeyLedgerRankings = "ledger_rankings"
)

// NewRunContext builds the initial context for one day's run.
func NewRunContext(date domain.Date) pipeline.Context {
	return pipeline.Context{pipeline.KeyDate: date}
}

func dateFrom(pc pipeline.Context) (domain.Date, bool) {
	d, ok := pc[pipeline.KeyDate].(domain.Date)
	return d, ok && !d.IsZero()
}

func datasetsFrom(pc pipeline.Context) (map[string]*domain.CategoryDataset, bool) {
	m, ok := pc[KeyDatasets].(map[string]*domain.CategoryDataset)
	return m, ok
}

// TradingDayTask stops the run on weekends and exchange holidays before
// any network traffic happens.
type TradingDayTask struct {
	checker *tradingday.Checker
}

func NewTradingDayTask(checker *tradingday.Checker) *TradingDayTask {
	return &TradingDayTask{checker: checker}
}

func (t *TradingDayTask) Name() string { return "check_trading_day" }

func (t *TradingDayTask) Execute(_ context.Context, pc pipeline.Context) (pipeline.Context, error) {
	date, ok := dateFrom(pc)
	if !ok {
		return pipeline.Error("run date missing from context"), nil
	}
	if !t.checker.IsTradingDay(date) {
		return pipeline.Skipped(fmt.Sprintf("%s is not a trading day", date)), nil
	}
	return pipeline.Success(fmt.Sprintf("%s is a trading day", date)), nil
}

// FetchTask downloads the raw spreadsheet for every category.
type FetchTask struct {
	fetcher fetch.Fetcher
}

func NewFetchTask(fetcher fetch.Fetcher) *FetchTask {
	return &FetchTask{fetcher: fetcher}
}

func (t *FetchTask) Name() string { return "fetch_raw_data" }

func (t *FetchTask) Execute(ctx context.Context, pc pipeline.Context) (pipeline.Context, error) {
	date, ok := dateFrom(pc)
	if !ok {
		return pipeline.Error("run date missing from context"), nil
	}

	payloads, failures := fetch.FetchAll(ctx, t.fetcher, date)
	switch {
	case len(payloads) == 0:
		return pipeline.Error(fmt.Sprintf("every category fetch failed: %v", failures)), nil
	case len(failures) > 0:
		return pipeline.PartialSuccess(fmt.Sprintf("%d categories downloaded, failed: %v", len(payloads), failures)).
			With(KeyRawPayloads, payloads), nil
	default:
		return pipeline.Success(fmt.Sprintf("%d categories downloaded", len(payloads))).
			With(KeyRawPayloads, payloads), nil
	}
}

// StandardizeTask turns raw payloads into canonical datasets. A day
// where every category comes back empty is reported as skipped, which
// stops the rest of the run without failing it.
type StandardizeTask struct {
	std *standardize.Standardizer
}

func NewStandardizeTask(std *standardize.Standardizer) *StandardizeTask {
	return &StandardizeTask{std: std}
}

func (t *StandardizeTask) Name() string { return "standardize_data" }

func (t *StandardizeTask) Execute(_ context.Context, pc pipeline.Context) (pipeline.Context, error) {
	date, ok := dateFrom(pc)
	if !ok {
		return pipeline.Error("run date missing from context"), nil
	}
	payloads, ok := pc[KeyRawPayloads].(map[string][]byte)
	if !ok {
		return pipeline.Error("raw payloads missing from context"), nil
	}

	datasets := make(map[string]*domain.CategoryDataset, len(payloads))
	var failed []string
	nonEmpty := 0
	for _, cat := range domain.AllCategories() {
		raw, fetched := payloads[cat.Key()]
		if !fetched {
			continue
		}
		ds, err := t.std.Standardize(raw, cat, date)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", cat.Key(), err))
			continue
		}
		datasets[cat.Key()] = ds
		if !ds.Empty() {
			nonEmpty++
		}
	}

	switch {
	case len(failed) > 0 && len(datasets) == 0:
		return pipeline.Error(fmt.Sprintf("standardization failed for every category: %v", failed)), nil
	case nonEmpty == 0 && len(failed) == 0:
		return pipeline.Skipped("all categories empty, likely a non-trading day"), nil
	case len(failed) > 0:
		return pipeline.PartialSuccess(fmt.Sprintf("%d categories standardized, failed: %v", len(datasets), failed)).
			With(KeyDatasets, datasets), nil
	default:
		return pipeline.Success(fmt.Sprintf("%d categories standardized", len(datasets))).
			With(KeyDatasets, datasets), nil
	}
}

// DailyReportsTask writes the standalone per-category workbooks.
type DailyReportsTask struct {
	writer *report.DailyWriter
}

func NewDailyReportsTask(writer *report.DailyWriter) *DailyReportsTask {
	return &DailyReportsTask{writer: writer}
}

func (t *DailyReportsTask) Name() string { return "save_daily_reports" }

func (t *DailyReportsTask) Execute(ctx context.Context, pc pipeline.Context) (pipeline.Context, error) {
	datasets, ok := datasetsFrom(pc)
	if !ok {
		return pipeline.Error("datasets missing from context"), nil
	}

	saved, failed := 0, 0
	for _, cat := range domain.ReportOrder() {
		ds := datasets[cat.Key()]
		if ds == nil {
			continue
		}
		wrote, err := t.writer.Save(ctx, ds)
		if err != nil {
			failed++
			continue
		}
		if wrote {
			saved++
		}
	}

	switch {
	case failed > 0 && saved == 0:
		return pipeline.Error("every daily report failed to save"), nil
	case failed > 0:
		return pipeline.PartialSuccess(fmt.Sprintf("%d daily reports saved, %d failed", saved, failed)), nil
	default:
		return pipeline.Success(fmt.Sprintf("%d daily reports saved", saved)), nil
	}
}

// LedgerTask appends the day to each category ledger and publishes the
// recomputed rankings under KeyLedgerRankings. Categories whose pivot
// sheet for the date already exists are left untouched; their stored
// ranking is read back instead.
type LedgerTask struct {
	engine *ledger.Engine
}

func NewLedgerTask(engine *ledger.Engine) *LedgerTask {
	return &LedgerTask{engine: engine}
}

func (t *LedgerTask) Name() string { return "update_ledgers" }

func (t *LedgerTask) Execute(ctx context.Context, pc pipeline.Context) (pipeline.Context, error) {
	date, ok := dateFrom(pc)
	if !ok {
		return pipeline.Error("run date missing from context"), nil
	}
	datasets, ok := datasetsFrom(pc)
	if !ok {
		return pipeline.Error("datasets missing from context"), nil
	}

	updated, skipped := 0, 0
	var failed []string
	rankings := make(map[string][]domain.RankedRow)
	for _, cat := range domain.ReportOrder() {
		ds := datasets[cat.Key()]
		if ds.Empty() {
			continue
		}

		done, ranked, err := t.engine.AlreadyProcessed(ctx, cat, date)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", cat.Key(), err))
			continue
		}
		if done {
			rankings[cat.Key()] = ranked
			skipped++
			continue
		}

		ranked, err = t.engine.Update(ctx, cat, ds, date)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", cat.Key(), err))
			continue
		}
		rankings[cat.Key()] = ranked
		updated++
	}

	switch {
	case len(failed) > 0 && updated == 0 && skipped == 0:
		return pipeline.Error(fmt.Sprintf("every ledger update failed: %v", failed)), nil
	case len(failed) > 0:
		return pipeline.PartialSuccess(fmt.Sprintf("%d ledgers updated, %d already current, failed: %v", updated, skipped, failed)).
			With(KeyLedgerRankings, rankings), nil
	default:
		return pipeline.Success(fmt.Sprintf("%d ledgers updated, %d already current", updated, skipped)).
			With(KeyLedgerRankings, rankings), nil
	}
}

// RankingTask writes the day's snapshot sheet into the shared workbook.
type RankingTask struct {
	engine *ranking.Engine
	topN   int
}

func NewRankingTask(engine *ranking.Engine, topN int) *RankingTask {
	return &RankingTask{engine: engine, topN: topN}
}

func (t *RankingTask) Name() string { return "update_ranking_snapshot" }

func (t *RankingTask) Execute(ctx context.Context, pc pipeline.Context) (pipeline.Context, error) {
	date, ok := dateFrom(pc)
	if !ok {
		return pipeline.Error("run date missing from context"), nil
	}
	datasets, ok := datasetsFrom(pc)
	if !ok {
		return pipeline.Error("datasets missing from context"), nil
	}

	if err := t.engine.UpdateSnapshot(ctx, date, datasets); err != nil {
		return pipeline.Error(fmt.Sprintf("snapshot update failed: %v", err)), nil
	}

	common := make([]string, 0, 2)
	for _, m := range domain.AllMarkets() {
		frn := datasets[domain.Category{Market: m, Investor: domain.InvestorForeigner}.Key()]
		inst := datasets[domain.Category{Market: m, Investor: domain.InvestorInstitutions}.Key()]
		symbols := ranking.SortedCommon(ranking.CommonSymbols(frn, inst, t.topN))
		common = append(common, fmt.Sprintf("%s=%v", m, symbols))
	}
	return pipeline.Success(fmt.Sprintf("snapshot sheet %s written, common symbols %v", date.SheetKey(), common)), nil
}

// WatchlistTask exports the flat top-symbol CSV.
type WatchlistTask struct {
	writer *report.WatchlistWriter
}

func NewWatchlistTask(writer *report.WatchlistWriter) *WatchlistTask {
	return &WatchlistTask{writer: writer}
}

func (t *WatchlistTask) Name() string { return "save_watchlist" }

func (t *WatchlistTask) Execute(ctx context.Context, pc pipeline.Context) (pipeline.Context, error) {
	date, ok := dateFrom(pc)
	if !ok {
		return pipeline.Error("run date missing from context"), nil
	}
	datasets, ok := datasetsFrom(pc)
	if !ok {
		return pipeline.Error("datasets missing from context"), nil
	}

	saved, err := t.writer.Save(ctx, date, datasets)
	if err != nil {
		return pipeline.Error(fmt.Sprintf("watchlist save failed: %v", err)), nil
	}
	if !saved {
		return pipeline.Skipped("no symbols to export"), nil
	}
	return pipeline.Success("watchlist exported"), nil
}
