package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rosterwatch/depthsync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "depthsync",
	Short: "Player-status resolution and publishing pipeline",
	Long:  "Merges depth chart, injury, and usage observations from multiple sources into authoritative weekly player records, validates them, and publishes atomically with immutable snapshots.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
