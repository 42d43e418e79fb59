package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/strykerhq/engagement/internal/logger"
	"github.com/strykerhq/engagement/internal/migrations"
	"github.com/strykerhq/engagement/internal/relevance"
	"github.com/strykerhq/engagement/internal/sqlite"
)

type config struct {
	Database     string `env:"DATABASE, required"`
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`

	Relevance relevance.Config
}

// Shared by every subcommand; filled in before any of them run.
type app struct {
	cfg config
	dbx *sqlx.DB
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "engagementctl",
		Short:         "Operate the engagement pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.dbx == nil {
				return nil
			}
			return a.dbx.Close()
		},
	}

	root.AddCommand(
		newMigrateCmd(a),
		newIngestCmd(a),
		newFeedCmd(a),
	)

	return root
}

// Loads the config and opens the database. Logs go to stderr so that stdout
// stays clean JSON.
func (a *app) open(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if err := envconfig.Process(ctx, &a.cfg); err != nil {
		return fmt.Errorf("error parsing config: %w", err)
	}

	slog.SetDefault(logger.New(os.Stderr, a.cfg.LoggerFormat))

	dbx, err := sqlite.Open(ctx, a.cfg.Database)
	if err != nil {
		return err
	}
	a.dbx = dbx

	return nil
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start := time.Now()
			if err := migrations.Run(a.dbx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated in %s\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
