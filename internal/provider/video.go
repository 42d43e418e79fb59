package provider

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

const youtubeBaseURL = "https://www.googleapis.com"

// Video searches recent videos through the YouTube Data API.
type Video struct {
	base
	key string
}

func NewVideo(cfg Config, opts ...Option) *Video {
	return &Video{
		base: newBase("video", youtubeBaseURL, cfg, opts...),
		key:  cfg.YouTubeAPIKey,
	}
}

// Search returns the raw search response for query, ordered by date.
func (v *Video) Search(ctx context.Context, query string, maxResults int) ([]byte, error) {
	if v.key == "" {
		return nil, ErrNoCredentials
	}

	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("type", "video")
	q.Set("order", "date")
	q.Set("maxResults", strconv.Itoa(maxResults))
	q.Set("q", query)
	q.Set("key", v.key)
	u := v.baseURL + "/youtube/v3/search?" + q.Encode()

	return v.get(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
}
