package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rosterwatch/depthsync/internal/model"
)

var (
	overridesImportFile string
	overridesListSeason int
)

var overridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "Manage manual overrides",
}

var overridesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import manual overrides from a JSON file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(overridesImportFile)
		if err != nil {
			return eris.Wrap(err, "read overrides file")
		}

		var overrides []model.ManualOverride
		if err := json.Unmarshal(data, &overrides); err != nil {
			return eris.Wrap(err, "parse overrides file")
		}
		if len(overrides) == 0 {
			return eris.New("overrides file contains no entries")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		imported, err := st.ImportOverrides(ctx, overrides)
		if err != nil {
			return eris.Wrap(err, "import overrides")
		}

		zap.L().Info("overrides imported",
			zap.Int64("imported", imported),
			zap.String("file", overridesImportFile),
		)
		return nil
	},
}

var overridesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active overrides for a season",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		overrides, err := st.ListActiveOverrides(ctx, overridesListSeason)
		if err != nil {
			return eris.Wrap(err, "list overrides")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(overrides)
	},
}

func init() {
	overridesImportCmd.Flags().StringVar(&overridesImportFile, "file", "", "path to JSON overrides file (required)")
	_ = overridesImportCmd.MarkFlagRequired("file")

	overridesListCmd.Flags().IntVar(&overridesListSeason, "season", 0, "season year (required)")
	_ = overridesListCmd.MarkFlagRequired("season")

	overridesCmd.AddCommand(overridesImportCmd)
	overridesCmd.AddCommand(overridesListCmd)
	rootCmd.AddCommand(overridesCmd)
}
