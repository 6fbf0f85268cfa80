package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rosterwatch/depthsync/internal/resolver"
	"github.com/rosterwatch/depthsync/internal/source"
)

var (
	resolveSeason int
	resolveWeek   int
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Preview conflict resolution for a week without writing anything",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		resolverCfg, err := loadResolverConfig()
		if err != nil {
			return err
		}

		observations, err := source.NewFile(cfg.Source.ObservationsDir).Fetch(ctx, resolveSeason, resolveWeek)
		if err != nil {
			return eris.Wrap(err, "fetch observations")
		}

		overrides, err := st.ListActiveOverrides(ctx, resolveSeason)
		if err != nil {
			return eris.Wrap(err, "list overrides")
		}

		result := resolver.New(resolverCfg).WithOverrides(overrides).Resolve(observations)

		zap.L().Info("resolution preview",
			zap.Int("observations", len(observations)),
			zap.Int("records", len(result.Records)),
			zap.Int("rejected", len(result.Errors)),
			zap.Int("conflicts", result.Stats.TotalConflicts),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	resolveCmd.Flags().IntVar(&resolveSeason, "season", 0, "season year (required)")
	resolveCmd.Flags().IntVar(&resolveWeek, "week", 0, "week number (required)")
	_ = resolveCmd.MarkFlagRequired("season")
	_ = resolveCmd.MarkFlagRequired("week")
	rootCmd.AddCommand(resolveCmd)
}
