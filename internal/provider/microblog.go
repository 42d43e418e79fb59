package provider

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Microblog searches the latest microblog posts through the RapidAPI gateway.
type Microblog struct {
	base
	key  string
	host string
}

func NewMicroblog(cfg Config, opts ...Option) *Microblog {
	return &Microblog{
		base: newBase("microblog", "https://"+cfg.TwitterHost, cfg, opts...),
		key:  cfg.RapidAPIKey,
		host: cfg.TwitterHost,
	}
}

// Search returns the raw search-v2 response for query, newest first.
func (m *Microblog) Search(ctx context.Context, query string, count int) ([]byte, error) {
	if m.key == "" {
		return nil, ErrNoCredentials
	}

	q := url.Values{}
	q.Set("type", "Latest")
	q.Set("count", strconv.Itoa(count))
	q.Set("query", query)
	u := m.baseURL + "/search-v2?" + q.Encode()

	return m.get(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("x-rapidapi-key", m.key)
		req.Header.Set("x-rapidapi-host", m.host)

		return req, nil
	})
}
