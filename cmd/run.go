package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"remotefile/core"
)

var onceConcurrency int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Schedule the configured jobs and run until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, tm, err := loadManager()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		runner := core.NewRunner(cfg, tm, logrus.StandardLogger())
		if err := runner.Start(ctx); err != nil {
			logrus.WithError(err).Warn("Some jobs were not scheduled")
		}
		logrus.Info("remotefile started...")

		<-ctx.Done()

		logrus.Info("Shutting down...")
		<-runner.Stop().Done()
		return tm.HistoryManager.Save()
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run every configured job once and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, tm, err := loadManager()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		runner := core.NewRunner(cfg, tm, logrus.StandardLogger())
		return runner.RunOnce(ctx, onceConcurrency)
	},
}

func init() {
	onceCmd.Flags().IntVar(&onceConcurrency, "concurrency", 4, "maximum jobs running at the same time")
	rootCmd.AddCommand(runCmd, onceCmd)
}
