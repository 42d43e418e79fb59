// Package engagement holds the unified post model that every provider is
// normalized into, and the storage surface the pipeline and the feed share.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrConflict = errors.New("resource already exists")
	ErrNotFound = errors.New("resource not found")
)

// Source is the platform a post was ingested from.
type Source string

const (
	SourceMicroblog Source = "microblog"
	SourceVideo     Source = "video"
)

// Sources lists every platform the pipeline knows about.
var Sources = []Source{SourceMicroblog, SourceVideo}

// ParseSource accepts the canonical names plus the provider names.
func ParseSource(s string) (Source, error) {
	switch s {
	case string(SourceMicroblog), "twitter":
		return SourceMicroblog, nil
	case string(SourceVideo), "youtube":
		return SourceVideo, nil
	}

	return "", fmt.Errorf("unknown source %q", s)
}

type MediaType string

const (
	MediaImage     MediaType = "image"
	MediaVideo     MediaType = "video"
	MediaThumbnail MediaType = "thumbnail"
	MediaEmbed     MediaType = "embed"
)

type (
	// Post is a single microblog item or video, in the shape the feed serves it.
	Post struct {
		ID          string    `json:"id"`
		Source      Source    `json:"source"`
		SourceID    string    `json:"source_id"`
		Title       *string   `json:"title"`
		Text        *string   `json:"text"`
		URL         string    `json:"url"`
		Media       []Media   `json:"media"`
		Author      Author    `json:"author"`
		Metrics     Metrics   `json:"metrics"`
		PublishedAt time.Time `json:"published_at"`
		FetchedAt   time.Time `json:"fetched_at"`
	}

	Media struct {
		Type MediaType `json:"type"`
		URL  string    `json:"url"`
	}

	Author struct {
		Name       string  `json:"name"`
		Handle     *string `json:"handle"`
		Avatar     *string `json:"avatar"`
		ProfileURL *string `json:"profile_url"`
	}

	// Metrics are the only mutable part of a post once it has been stored.
	Metrics struct {
		Likes  int64  `json:"likes"`
		Shares int64  `json:"shares"`
		Views  *int64 `json:"views"`
	}
)

// Key is the provider-scoped natural identity of a post.
type Key struct {
	Source   Source
	SourceID string
}

func (p Post) Key() Key {
	return Key{Source: p.Source, SourceID: p.SourceID}
}

type (
	// QueryArgs narrows a feed read. Before is exclusive.
	QueryArgs struct {
		Source Source
		Before *Cursor
		Limit  int
	}

	// UpsertResult reports what an upsert did to the stored row.
	UpsertResult struct {
		ID       string
		Inserted bool
	}

	// PostStore is the durable home of posts.
	PostStore interface {
		// WithTx runs fn inside a single transaction. The transaction is committed
		// when fn returns nil and rolled back otherwise.
		WithTx(ctx context.Context, fn func(tx PostTx) error) error
		// Query returns posts ordered by published_at then id, newest first.
		Query(ctx context.Context, args QueryArgs) ([]Post, error)
	}

	// PostTx is the set of writes available inside a transaction.
	PostTx interface {
		FindByKey(ctx context.Context, key Key) (Post, error)
		Insert(ctx context.Context, p *Post) error
		UpdateMetrics(ctx context.Context, id string, m Metrics, fetchedAt time.Time) error
		// Upsert inserts p, or when its key already exists only refreshes metrics
		// and fetched_at. It is a single statement keyed on the unique constraint.
		Upsert(ctx context.Context, p Post) (UpsertResult, error)
	}
)
