package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rosterwatch/depthsync/internal/store"
	"github.com/rosterwatch/depthsync/internal/validator"
)

var (
	validateSeason  int
	validateWeek    int
	validateVerbose bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run quality validation against already-published records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := st.ListRecords(ctx, store.RecordFilter{
			Season:   validateSeason,
			WeekFrom: validateWeek,
			WeekTo:   validateWeek,
		})
		if err != nil {
			return eris.Wrap(err, "list records")
		}
		if len(records) == 0 {
			return eris.Errorf("no records found for season %d week %d", validateSeason, validateWeek)
		}

		history, err := st.ListRecords(ctx, store.RecordFilter{
			Season:   validateSeason,
			WeekFrom: 1,
			WeekTo:   validateWeek - 1,
		})
		if err != nil {
			return eris.Wrap(err, "list history")
		}

		vctx := validator.BuildContext(validateSeason, validateWeek, history)
		dataset, reports := validator.ValidateDataset(validator.NewRegistry(), records, vctx,
			fmt.Sprintf("%dW%d", validateSeason, validateWeek))

		zap.L().Info("validation complete",
			zap.Int("records", dataset.TotalRecords),
			zap.Float64("overall_score", dataset.OverallQualityScore),
			zap.Int("critical", dataset.Distribution.Critical),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if validateVerbose {
			return enc.Encode(struct {
				Dataset *validator.DatasetQualityReport `json:"dataset"`
				Records []validator.RecordQualityReport `json:"records"`
			}{dataset, reports})
		}
		return enc.Encode(dataset)
	},
}

func init() {
	validateCmd.Flags().IntVar(&validateSeason, "season", 0, "season year (required)")
	validateCmd.Flags().IntVar(&validateWeek, "week", 0, "week number (required)")
	validateCmd.Flags().BoolVar(&validateVerbose, "verbose", false, "include per-record reports")
	_ = validateCmd.MarkFlagRequired("season")
	_ = validateCmd.MarkFlagRequired("week")
	rootCmd.AddCommand(validateCmd)
}
