package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"krxflow/internal/app"
	"krxflow/internal/domain"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the daily pipeline on the configured cron schedule",
	Long: `Stays in the foreground and runs the pipeline for the current date on
every cron trigger. The expression uses six fields (with seconds); the
default fires at 16:30 on weekdays, after the exchange publishes the
daily figures.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		logger := a.Logger()

		c := cron.New(cron.WithSeconds())
		_, err = c.AddFunc(cfg.Schedule.Cron, func() {
			date := domain.Today()
			logger.Info("scheduled run starting", slog.String("date", date.String()))
			res := a.RunDaily(cmd.Context(), date)
			logRunResult(logger, res)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", cfg.Schedule.Cron, err)
		}

		logger.Info("scheduler started", slog.String("cron", cfg.Schedule.Cron))
		c.Start()
		defer c.Stop()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		logger.Info("scheduler stopping", slog.String("signal", s.String()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
