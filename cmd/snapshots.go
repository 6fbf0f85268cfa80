package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rosterwatch/depthsync/internal/snapshot"
)

var (
	snapshotsSeason int
	snapshotsWeek   int
	snapshotsShow   string
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List or inspect immutable publish snapshots",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if snapshotsShow != "" {
			snap, err := snapshot.Load(snapshotsShow)
			if err != nil {
				return eris.Wrap(err, "load snapshot")
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		paths, err := snapshot.NewWriter(cfg.Publish.SnapshotsDir).List(snapshotsSeason, snapshotsWeek)
		if err != nil {
			return eris.Wrap(err, "list snapshots")
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	},
}

func init() {
	snapshotsCmd.Flags().IntVar(&snapshotsSeason, "season", 0, "season year")
	snapshotsCmd.Flags().IntVar(&snapshotsWeek, "week", 0, "week number")
	snapshotsCmd.Flags().StringVar(&snapshotsShow, "show", "", "print the snapshot at this path instead of listing")
	rootCmd.AddCommand(snapshotsCmd)
}
