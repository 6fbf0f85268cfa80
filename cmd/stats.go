package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rosterwatch/depthsync/internal/monitoring"
)

var (
	statsSeason   int
	statsLookback int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate publish metrics for a season",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		snap, err := monitoring.NewCollector(st).Collect(ctx, statsSeason, statsLookback)
		if err != nil {
			return eris.Wrap(err, "collect metrics")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsSeason, "season", 0, "season year (required)")
	statsCmd.Flags().IntVar(&statsLookback, "lookback-hours", 168, "metrics window in hours")
	_ = statsCmd.MarkFlagRequired("season")
	rootCmd.AddCommand(statsCmd)
}
