// Package feed serves the merged, newest-first feed of stored posts.
//
// Only first pages go through the cache. Anything behind a cursor is always
// read from the store.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/strykerhq/engagement/internal/engagement"
)

const (
	DefaultLimit = 20
	MaxLimit     = 50
	DefaultTTL   = 5 * time.Minute
)

var ErrInvalidLimit = fmt.Errorf("limit must be between 1 and %d", MaxLimit)

// Cache is a TTL key/value store. A missing key is not an error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type (
	// Request describes one feed page. An empty Source means every source.
	Request struct {
		Source engagement.Source
		Limit  int
		Cursor *engagement.Cursor
		// CursorIgnored is set when the caller sent a cursor that couldn't be
		// read. The page starts from the newest post but skips the cache.
		CursorIgnored bool
	}

	Page struct {
		Data       []engagement.Post `json:"data"`
		Pagination Pagination        `json:"pagination"`
	}

	Pagination struct {
		// NextCursor is nil on the last page.
		NextCursor *string `json:"next_cursor"`
	}
)

// Metrics counts how first-page lookups went.
type Metrics struct {
	cacheRequests *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		cacheRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "engagement_feed_cache_requests_total",
			Help: "First page cache lookups by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) cacheResult(result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(result).Inc()
}

type Service struct {
	store   engagement.PostStore
	cache   Cache
	ttl     time.Duration
	metrics *Metrics
}

type Option func(*Service)

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService builds the read path. cache may be nil, in which case every page
// comes from the store.
func NewService(store engagement.PostStore, cache Cache, opts ...Option) *Service {
	s := &Service{store: store, cache: cache, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CacheKey is where the first page for the given source and limit is kept.
func CacheKey(source engagement.Source, limit int) string {
	name := string(source)
	if name == "" {
		name = "all"
	}

	return fmt.Sprintf("engagement:feed:%s:%d", name, limit)
}

func (s *Service) Feed(ctx context.Context, req Request) (Page, error) {
	if req.Limit == 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit < 1 || req.Limit > MaxLimit {
		return Page{}, ErrInvalidLimit
	}

	firstPage := req.Cursor == nil && !req.CursorIgnored
	key := CacheKey(req.Source, req.Limit)
	if firstPage {
		if page, ok := s.cached(ctx, key); ok {
			return page, nil
		}
	}

	posts, err := s.store.Query(ctx, engagement.QueryArgs{
		Source: req.Source,
		Before: req.Cursor,
		Limit:  req.Limit + 1,
	})
	if err != nil {
		return Page{}, fmt.Errorf("error querying feed: %w", err)
	}

	page := paginate(posts, req.Limit)
	if firstPage && len(page.Data) > 0 {
		s.populate(ctx, key, page)
	}

	return page, nil
}

// Trims the extra lookahead row. The cursor only carries the id when the
// lookahead row shares the last row's timestamp.
func paginate(posts []engagement.Post, limit int) Page {
	page := Page{Data: posts}
	if page.Data == nil {
		page.Data = []engagement.Post{}
	}
	if len(posts) <= limit {
		return page
	}

	last, next := posts[limit-1], posts[limit]
	c := engagement.Cursor{PublishedAt: last.PublishedAt}
	if next.PublishedAt.Equal(last.PublishedAt) {
		c.ID = last.ID
	}
	cursor := c.String()

	page.Data = posts[:limit]
	page.Pagination.NextCursor = &cursor

	return page
}

// A broken cache is logged and treated as a miss.
func (s *Service) cached(ctx context.Context, key string) (Page, bool) {
	if s.cache == nil {
		return Page{}, false
	}

	byts, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.metrics.cacheResult("error")
		slog.WarnContext(ctx, "feed cache read failed", "key", key, "error", err)
		return Page{}, false
	}
	if !ok {
		s.metrics.cacheResult("miss")
		return Page{}, false
	}

	var page Page
	if err := json.Unmarshal(byts, &page); err != nil {
		s.metrics.cacheResult("error")
		slog.WarnContext(ctx, "unreadable feed cache entry", "key", key, "error", err)
		return Page{}, false
	}
	s.metrics.cacheResult("hit")

	return page, true
}

func (s *Service) populate(ctx context.Context, key string, page Page) {
	if s.cache == nil {
		return
	}

	byts, err := json.Marshal(page)
	if err == nil {
		err = s.cache.Set(ctx, key, byts, s.ttl)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.WarnContext(ctx, "feed cache write failed", "key", key, "error", err)
	}
}
