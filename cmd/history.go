package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rosterwatch/depthsync/internal/store"
)

var (
	historySeason int
	historyWeek   int
	historyStatus string
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the audit log of past publish runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.ListIngestionLog(ctx, store.LogFilter{
			Season: historySeason,
			Week:   historyWeek,
			Status: historyStatus,
			Limit:  historyLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list ingestion log")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historySeason, "season", 0, "season year (required)")
	historyCmd.Flags().IntVar(&historyWeek, "week", 0, "filter to one week")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "filter by run status (success, partial_failure)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "max entries")
	_ = historyCmd.MarkFlagRequired("season")
	rootCmd.AddCommand(historyCmd)
}
