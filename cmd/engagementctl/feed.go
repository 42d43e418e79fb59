package main

import (
	"github.com/spf13/cobra"

	"github.com/strykerhq/engagement/internal/engagement"
	"github.com/strykerhq/engagement/internal/feed"
	"github.com/strykerhq/engagement/internal/sqlite"
)

func newFeedCmd(a *app) *cobra.Command {
	var (
		source string
		cursor string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Print one feed page straight from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := feed.Request{Limit: limit}
			if source != "" {
				src, err := engagement.ParseSource(source)
				if err != nil {
					return err
				}
				req.Source = src
			}
			if cursor != "" {
				c, err := engagement.ParseCursor(cursor)
				if err != nil {
					return err
				}
				req.Cursor = &c
			}

			// No cache: this is for checking what is actually stored.
			page, err := feed.NewService(sqlite.New(a.dbx), nil).Feed(cmd.Context(), req)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), page)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "microblog or video (default all)")
	cmd.Flags().StringVar(&cursor, "cursor", "", "next_cursor of the previous page")
	cmd.Flags().IntVar(&limit, "limit", feed.DefaultLimit, "page size")

	return cmd
}
