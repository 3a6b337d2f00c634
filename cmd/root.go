package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"remotefile/config"
	"remotefile/core"
)

var (
	configPath  string
	historyPath string
	logLevel    string
	envFiles    []string
)

var rootCmd = &cobra.Command{
	Use:   "remotefile",
	Short: "Resumable file transfers over FTP, SFTP and object storage",
	Long: `remotefile moves single files to and from FTP, SFTP, MinIO/S3 and local
connections, resuming interrupted transfers, and runs scheduled transfer jobs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadEnv(envFiles...)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "config file path (.toml, .yaml)")
	rootCmd.PersistentFlags().StringVar(&historyPath, "history", "history.json", "job history file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env", []string{".env"}, "dotenv files to load before reading the config")
}

// setupLogging applies the config's logging section, then the --log-level flag.
func setupLogging(cfg config.Log) error {
	logrus.SetOutput(os.Stderr)
	switch cfg.Format {
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	level := cfg.Level
	if logLevel != "" {
		level = logLevel
	}
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	return nil
}

// loadManager reads the config and history and builds a TransferManager.
func loadManager() (*config.Config, *core.TransferManager, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := setupLogging(cfg.Log); err != nil {
		return nil, nil, err
	}

	hm := core.NewHistoryManager(historyPath)
	if err := hm.Load(); err != nil {
		logrus.WithError(err).Warn("Failed to load history")
	}
	return cfg, core.NewTransferManager(cfg, hm, logrus.StandardLogger()), nil
}
