// Package ingest pulls posts from the providers into the store. One run
// handles one platform: search, normalize, then upsert the batch in a single
// transaction.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/strykerhq/engagement/internal/engagement"
	"github.com/strykerhq/engagement/internal/logger"
)

var (
	// ErrFetch means the provider could not be reached or answered with garbage.
	// Nothing was written.
	ErrFetch = errors.New("fetch failed")
	// ErrPersist means the batch could not be committed and was rolled back.
	ErrPersist = errors.New("persist failed")
)

// Config holds what to search for and how often.
type Config struct {
	MicroblogQuery    string        `env:"MICROBLOG_QUERY, default=#MajorLeagueCricket OR #USACricket OR #BigBashLeague OR #T20Cricket"`
	MicroblogCount    int           `env:"MICROBLOG_COUNT, default=20"`
	VideoQuery        string        `env:"VIDEO_QUERY, default=Major League Cricket highlights USA cricket"`
	VideoMaxResults   int           `env:"VIDEO_MAX_RESULTS, default=10"`
	MicroblogInterval time.Duration `env:"MICROBLOG_INTERVAL, default=15m"`
	VideoInterval     time.Duration `env:"VIDEO_INTERVAL, default=30m"`
	RunTimeout        time.Duration `env:"RUN_TIMEOUT, default=2m"`
}

type (
	// Searcher is one external search call returning the raw response body.
	Searcher interface {
		Search(ctx context.Context, query string, count int) ([]byte, error)
	}

	// Normalizer turns a raw response into relevant posts.
	Normalizer interface {
		Normalize(ctx context.Context, source engagement.Source, raw []byte) ([]engagement.Post, error)
	}
)

// Pipeline is everything a run needs to know about one platform.
type Pipeline struct {
	Source   engagement.Source
	Query    string
	Count    int
	Searcher Searcher
}

// Pipelines wires the configured queries to their searchers.
func Pipelines(cfg Config, microblog, video Searcher) []Pipeline {
	return []Pipeline{
		{Source: engagement.SourceMicroblog, Query: cfg.MicroblogQuery, Count: cfg.MicroblogCount, Searcher: microblog},
		{Source: engagement.SourceVideo, Query: cfg.VideoQuery, Count: cfg.VideoMaxResults, Searcher: video},
	}
}

// Schedules pairs each platform with its configured cadence.
func Schedules(cfg Config) []Schedule {
	return []Schedule{
		{Platform: engagement.SourceMicroblog, Interval: cfg.MicroblogInterval},
		{Platform: engagement.SourceVideo, Interval: cfg.VideoInterval},
	}
}

// Summary is what a run did.
type Summary struct {
	Platform   engagement.Source `json:"platform"`
	Normalized int               `json:"normalized"`
	Inserted   int               `json:"inserted"`
	Updated    int               `json:"updated"`
}

type Coordinator struct {
	store      engagement.PostStore
	normalizer Normalizer
	pipelines  map[engagement.Source]Pipeline
	metrics    *Metrics
	now        func() time.Time
}

type Option func(*Coordinator)

func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

func NewCoordinator(store engagement.PostStore, normalizer Normalizer, pipelines []Pipeline, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:      store,
		normalizer: normalizer,
		pipelines:  make(map[engagement.Source]Pipeline, len(pipelines)),
		now:        time.Now,
	}
	for _, p := range pipelines {
		c.pipelines[p.Source] = p
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run performs one ingestion of platform. A failed run leaves the store as it
// was, so the next tick can simply try again.
func (c *Coordinator) Run(ctx context.Context, platform engagement.Source) (Summary, error) {
	p, ok := c.pipelines[platform]
	if !ok {
		return Summary{}, fmt.Errorf("no pipeline for platform %q", platform)
	}

	ctx = logger.Ctx(ctx,
		slog.String("platform", string(platform)),
		slog.String("run_id", uuid.NewString()),
	)
	start := c.now()

	sum, err := c.run(ctx, p)
	c.metrics.observeRun(sum, err, c.now().Sub(start))
	if err != nil {
		slog.ErrorContext(ctx, "ingestion run failed", "error", err)
		return sum, err
	}
	slog.InfoContext(ctx, "ingestion run finished",
		"normalized", sum.Normalized,
		"inserted", sum.Inserted,
		"updated", sum.Updated,
	)

	return sum, nil
}

func (c *Coordinator) run(ctx context.Context, p Pipeline) (Summary, error) {
	sum := Summary{Platform: p.Source}

	raw, err := p.Searcher.Search(ctx, p.Query, p.Count)
	if err != nil {
		return sum, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	posts, err := c.normalizer.Normalize(ctx, p.Source, raw)
	if err != nil {
		return sum, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	sum.Normalized = len(posts)
	if len(posts) == 0 {
		return sum, nil
	}

	var inserted, updated int
	err = c.store.WithTx(ctx, func(tx engagement.PostTx) error {
		for _, post := range posts {
			res, err := tx.Upsert(ctx, post)
			if err != nil {
				return fmt.Errorf("error upserting %s/%s: %w", post.Source, post.SourceID, err)
			}
			if res.Inserted {
				inserted++
			} else {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return sum, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	sum.Inserted, sum.Updated = inserted, updated

	return sum, nil
}
