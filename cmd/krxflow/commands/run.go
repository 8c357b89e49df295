package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"krxflow/internal/app"
	"krxflow/internal/domain"
	"krxflow/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run [YYYYMMDD]",
	Short: "Run the daily pipeline once",
	Long: `Runs the full daily pipeline for today, or for the given date when one
is passed. Reprocessing an already-processed date is safe: ledgers whose
per-day view exists are left untouched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date := domain.Today()
		if len(args) == 1 {
			var err error
			date, err = domain.ParseDate(args[0])
			if err != nil {
				return err
			}
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}

		res := a.RunDaily(cmd.Context(), date)
		logRunResult(a.Logger(), res)
		exitCode = app.ExitCode(res)
		return nil
	},
}

func logRunResult(logger *slog.Logger, res *pipeline.RunResult) {
	logger.Info("run finished",
		slog.String("run_id", res.ID),
		slog.String("state", string(res.State)),
		slog.String("status", string(res.Final.Status())),
		slog.String("message", res.Final.Message()))
	for _, step := range res.Steps {
		logger.Info("step",
			slog.String("task", step.Task),
			slog.String("status", string(step.Status)),
			slog.String("message", step.Message),
			slog.Duration("took", step.Duration))
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
}
