// Package app wires configuration, storage, the fetch client and the
// report engines into the daily pipeline, and maps run outcomes to
// process exit codes.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"krxflow/internal/config"
	"krxflow/internal/domain"
	apperrors "krxflow/internal/errors"
	"krxflow/internal/fetch"
	"krxflow/internal/infrastructure"
	"krxflow/internal/ledger"
	"krxflow/internal/pipeline"
	"krxflow/internal/ranking"
	"krxflow/internal/report"
	"krxflow/internal/standardize"
	"krxflow/internal/storage"
	"krxflow/internal/tasks"
	"krxflow/internal/tradingday"
)

// Exit codes returned by the run command.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitCritical = 2
)

// App is the assembled application.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   storage.Store
	fetcher fetch.Fetcher
	checker *tradingday.Checker
}

// New loads everything the pipeline needs from the configuration.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, apperrors.NewConfigError("initialize logger", err)
	}

	store, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.Reports.LedgerDir, cfg.Reports.DailyDir, cfg.Reports.WatchlistDir} {
		if err := store.EnsureDir(ctx, dir); err != nil {
			return nil, apperrors.NewStorageError("prepare output directory", err).
				WithContext("dir", dir)
		}
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		fetcher: fetch.NewKRXClient(cfg.Fetch, logger),
		checker: tradingday.NewChecker(logger),
	}, nil
}

// buildStore selects the document store backend. The fallback backend
// writes to Drive and falls back to local disk for reads.
func buildStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	local := storage.NewLocalStore(cfg.Paths.DataDir, logger)

	switch cfg.Storage.Backend {
	case "local":
		return local, nil
	case "drive", "fallback":
		drive, err := storage.NewDriveStore(ctx,
			cfg.Storage.Drive.CredentialsFile,
			cfg.Storage.Drive.RootFolderName,
			cfg.Storage.Drive.RootFolderID,
			logger)
		if err != nil {
			return nil, apperrors.NewConfigError("connect drive storage", err)
		}
		if cfg.Storage.Backend == "drive" {
			return drive, nil
		}
		return storage.NewFallbackStore(drive, local, logger), nil
	default:
		return nil, apperrors.NewConfigError(
			fmt.Sprintf("unknown storage backend %q", cfg.Storage.Backend), nil)
	}
}

// Logger exposes the application logger to commands.
func (a *App) Logger() *slog.Logger { return a.logger }

// SnapshotPath returns the ranking workbook path for a date's year,
// e.g. "2025일별수급순위정리표.xlsx".
func (a *App) SnapshotPath(date domain.Date) string {
	return fmt.Sprintf("%d%s", date.Year(), a.cfg.Reports.SnapshotFile)
}

// RunDaily executes the full daily pipeline for one date.
func (a *App) RunDaily(ctx context.Context, date domain.Date) *pipeline.RunResult {
	reports := a.cfg.Reports

	p := pipeline.New("daily_net_flow", a.logger,
		tasks.NewTradingDayTask(a.checker),
		tasks.NewFetchTask(a.fetcher),
		tasks.NewStandardizeTask(standardize.New(reports.TopCount, a.logger)),
		tasks.NewDailyReportsTask(report.NewDailyWriter(a.store, reports.DailyDir, a.logger)),
		tasks.NewLedgerTask(ledger.NewEngine(a.store, reports.LedgerDir, reports.DisplayCount, a.logger)),
		tasks.NewRankingTask(ranking.NewEngine(a.store, a.SnapshotPath(date), reports.DisplayCount, a.logger), reports.TopCount),
		tasks.NewWatchlistTask(report.NewWatchlistWriter(a.store, reports.WatchlistDir, reports.TopCount, a.logger)),
	)

	return p.Run(ctx, tasks.NewRunContext(date))
}

// ExitCode maps a run result to a process exit code. A run halted on
// skip (holiday, empty day) is a normal outcome.
func ExitCode(res *pipeline.RunResult) int {
	switch res.State {
	case pipeline.RunStateCompleted, pipeline.RunStateHaltedOnSkip:
		return ExitOK
	case pipeline.RunStateHaltedOnFault:
		return ExitCritical
	default:
		return ExitError
	}
}
