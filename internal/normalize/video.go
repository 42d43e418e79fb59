package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/strykerhq/engagement/internal/engagement"
)

// Thumbnail resolutions, best first.
var thumbnailPaths = []string{
	"snippet.thumbnails.high.url",
	"snippet.thumbnails.medium.url",
	"snippet.thumbnails.default.url",
}

const videoKind = "youtube#video"

// Video parses a video search response. The search endpoint carries no
// engagement counts, so every metric is zero.
func (n *Normalizer) Video(ctx context.Context, raw []byte) ([]engagement.Post, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("video response: %w", ErrInvalidPayload)
	}

	var (
		doc       = gjson.ParseBytes(raw)
		fetchedAt = n.now().UTC()
		posts     []engagement.Post
	)
	for _, item := range doc.Get("items").Array() {
		post, ok, err := n.videoPost(item, fetchedAt)
		if err != nil {
			slog.WarnContext(ctx, "dropping video item", "error", err)
			continue
		}
		if !ok {
			continue
		}
		posts = append(posts, post)
	}

	return posts, nil
}

func (n *Normalizer) videoPost(item gjson.Result, fetchedAt time.Time) (engagement.Post, bool, error) {
	if !item.IsObject() || item.Get("id.kind").String() != videoKind {
		return engagement.Post{}, false, nil
	}

	snippet := item.Get("snippet")
	var (
		title       = sanitize(snippet.Get("title").String())
		description = sanitize(snippet.Get("description").String())
	)
	if !n.filter.IsRelevant(strings.TrimSpace(title + " " + description)) {
		return engagement.Post{}, false, nil
	}

	id := item.Get("id.videoId").String()
	if id == "" {
		return engagement.Post{}, false, fmt.Errorf("video without an id: %w", ErrMalformed)
	}

	publishedAt := fetchedAt
	if s := snippet.Get("publishedAt").String(); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return engagement.Post{}, false, fmt.Errorf("video %s: bad publishedAt %q: %w", id, s, ErrMalformed)
		}
		publishedAt = ts.UTC()
	}

	media := []engagement.Media{}
	for _, p := range thumbnailPaths {
		if u := item.Get(p).String(); u != "" {
			media = append(media, engagement.Media{Type: engagement.MediaThumbnail, URL: u})
			break
		}
	}
	media = append(media, engagement.Media{Type: engagement.MediaEmbed, URL: "https://www.youtube.com/embed/" + id})

	channelName := snippet.Get("channelTitle").String()
	if channelName == "" {
		channelName = "Unknown Channel"
	}
	channelID := snippet.Get("channelId").String()
	var profile *string
	if channelID != "" {
		profile = optional("https://youtube.com/channel/" + channelID)
	}

	var views int64
	return engagement.Post{
		Source:   engagement.SourceVideo,
		SourceID: id,
		Title:    optional(title),
		Text:     optional(description),
		URL:      "https://www.youtube.com/watch?v=" + id,
		Media:    media,
		Author: engagement.Author{
			Name:       channelName,
			Handle:     optional(channelID),
			ProfileURL: profile,
		},
		Metrics:     engagement.Metrics{Views: &views},
		PublishedAt: publishedAt,
		FetchedAt:   fetchedAt,
	}, true, nil
}
