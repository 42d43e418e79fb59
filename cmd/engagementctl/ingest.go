package main

import (
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/strykerhq/engagement/internal/engagement"
	"github.com/strykerhq/engagement/internal/ingest"
	"github.com/strykerhq/engagement/internal/normalize"
	"github.com/strykerhq/engagement/internal/provider"
	"github.com/strykerhq/engagement/internal/relevance"
	"github.com/strykerhq/engagement/internal/sqlite"
)

type ingestConfig struct {
	Provider provider.Config
	Ingest   ingest.Config
}

func newIngestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "ingest <platform>",
		Short:     "Run one ingestion for a platform and print its summary",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(engagement.SourceMicroblog), string(engagement.SourceVideo)},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			platform, err := engagement.ParseSource(args[0])
			if err != nil {
				return err
			}

			var cfg ingestConfig
			if err := envconfig.Process(ctx, &cfg); err != nil {
				return err
			}
			filter, err := relevance.Load(a.cfg.Relevance)
			if err != nil {
				return err
			}

			coord := ingest.NewCoordinator(
				sqlite.New(a.dbx),
				normalize.New(filter, time.Now),
				ingest.Pipelines(cfg.Ingest, provider.NewMicroblog(cfg.Provider), provider.NewVideo(cfg.Provider)),
			)
			sum, err := coord.Run(ctx, platform)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), sum)
		},
	}
}
