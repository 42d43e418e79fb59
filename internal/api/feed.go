package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/strykerhq/engagement/internal/engagement"
	enerrs "github.com/strykerhq/engagement/internal/errors"
	"github.com/strykerhq/engagement/internal/feed"
	"github.com/strykerhq/engagement/internal/serverutil"
)

// Parses ?source=&limit=&cursor= into a feed request. A cursor that can't be
// read is dropped: the page starts from the newest post, uncached.
func parseFeedRequest(r *http.Request) (feed.Request, error) {
	var (
		q       = r.URL.Query()
		req     = feed.Request{Limit: feed.DefaultLimit}
		details []enerrs.Detail
	)

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > feed.MaxLimit {
			details = append(details, enerrs.Detail{
				Field: "limit",
				Error: fmt.Sprintf("must be an integer between 1 and %d", feed.MaxLimit),
			})
		} else {
			req.Limit = n
		}
	}

	if s := q.Get("source"); s != "" {
		src, err := engagement.ParseSource(s)
		if err != nil {
			details = append(details, enerrs.Detail{Field: "source", Error: err.Error()})
		} else {
			req.Source = src
		}
	}

	if len(details) > 0 {
		return feed.Request{}, enerrs.E(http.StatusBadRequest, "invalid feed query", details)
	}

	if s := q.Get("cursor"); s != "" {
		c, err := engagement.ParseCursor(s)
		if err != nil {
			slog.WarnContext(r.Context(), "ignoring unreadable cursor", "cursor", s, "error", err)
			req.CursorIgnored = true
		} else {
			req.Cursor = &c
		}
	}

	return req, nil
}

func (s Server) getFeed(w http.ResponseWriter, r *http.Request) error {
	req, err := parseFeedRequest(r)
	if err != nil {
		return err
	}

	page, err := s.feed.Feed(r.Context(), req)
	if err != nil {
		return fmt.Errorf("error getting feed: %w", err)
	}

	return serverutil.WriteJSON(w, http.StatusOK, page)
}
