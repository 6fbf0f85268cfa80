package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rosterwatch/depthsync/internal/notify"
	"github.com/rosterwatch/depthsync/internal/pipeline"
	"github.com/rosterwatch/depthsync/internal/publisher"
	"github.com/rosterwatch/depthsync/internal/snapshot"
	"github.com/rosterwatch/depthsync/internal/source"
	"github.com/rosterwatch/depthsync/internal/validator"
)

var (
	publishSeason           int
	publishWeek             int
	publishDryRun           bool
	publishBatchSize        int
	publishSkipSnapshot     bool
	publishSkipInvalidation bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Resolve, validate, and publish one week of player records",
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

		var notifier notify.Notifier
		if cfg.Notify.WebhookURL != "" {
			notifier = notify.NewWebhook(cfg.Notify.WebhookURL)
		}

		batchSize := cfg.Publish.BatchSize
		if publishBatchSize > 0 {
			batchSize = publishBatchSize
		}

		pub := publisher.New(st, snapshot.NewWriter(cfg.Publish.SnapshotsDir), notifier, publisher.Options{
			BatchSize:        batchSize,
			BatchPause:       time.Duration(cfg.Publish.BatchPauseMs) * time.Millisecond,
			RatePerSec:       cfg.Publish.RatePerSec,
			DryRun:           publishDryRun,
			SkipSnapshot:     publishSkipSnapshot,
			SkipInvalidation: publishSkipInvalidation,
		})

		p := pipeline.New(st, source.NewFile(cfg.Source.ObservationsDir), resolverCfg, validator.NewRegistry(), pub)

		result, err := p.Run(ctx, publishSeason, publishWeek)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("publish complete",
			zap.Int("season", publishSeason),
			zap.Int("week", publishWeek),
			zap.Int("observations", result.ObservationCount),
			zap.Int("created", result.Publish.RecordsCreated),
			zap.Int("updated", result.Publish.RecordsUpdated),
			zap.Int("failed", result.Publish.RecordsFailed),
			zap.Bool("dry_run", publishDryRun),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	publishCmd.Flags().IntVar(&publishSeason, "season", 0, "season year (required)")
	publishCmd.Flags().IntVar(&publishWeek, "week", 0, "week number (required)")
	publishCmd.Flags().BoolVar(&publishDryRun, "dry-run", false, "resolve and validate but write nothing")
	publishCmd.Flags().IntVar(&publishBatchSize, "batch-size", 0, "records per write batch (overrides config)")
	publishCmd.Flags().BoolVar(&publishSkipSnapshot, "no-snapshot", false, "skip writing the immutable snapshot")
	publishCmd.Flags().BoolVar(&publishSkipInvalidation, "skip-invalidation", false, "skip the cache invalidation webhook")
	_ = publishCmd.MarkFlagRequired("season")
	_ = publishCmd.MarkFlagRequired("week")
	rootCmd.AddCommand(publishCmd)
}
