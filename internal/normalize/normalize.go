// Package normalize turns raw provider search responses into engagement posts.
//
// Each provider has its own deeply nested and inconsistent schema. A logical
// field is often reachable at several locations depending on the response
// variant, so every field declares its candidate locations in the order they
// are tried, and the first present value wins.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/strykerhq/engagement/internal/engagement"
	"github.com/strykerhq/engagement/internal/relevance"
)

var (
	// ErrInvalidPayload means the response as a whole could not be parsed.
	ErrInvalidPayload = errors.New("invalid provider payload")
	// ErrMalformed means a single item was unusable. Only that item is dropped.
	ErrMalformed = errors.New("malformed item")
)

// Normalizer is safe for concurrent use.
type Normalizer struct {
	filter *relevance.Filter
	now    func() time.Time
}

func New(filter *relevance.Filter, now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}

	return &Normalizer{filter: filter, now: now}
}

// Normalize dispatches to the parser for the given source.
func (n *Normalizer) Normalize(ctx context.Context, source engagement.Source, raw []byte) ([]engagement.Post, error) {
	switch source {
	case engagement.SourceMicroblog:
		return n.Microblog(ctx, raw)
	case engagement.SourceVideo:
		return n.Video(ctx, raw)
	}

	return nil, fmt.Errorf("no normalizer for source %q", source)
}

// Returns the first candidate holding a non-empty string.
func firstString(candidates ...gjson.Result) string {
	for _, c := range candidates {
		if s := c.String(); c.Exists() && s != "" {
			return s
		}
	}

	return ""
}

// Reads a count that may arrive as a number or a numeric string. Anything else,
// including negatives, is zero.
func count(r gjson.Result) int64 {
	var n int64
	switch r.Type {
	case gjson.Number:
		n = r.Int()
	case gjson.String:
		v, err := strconv.ParseInt(strings.TrimSpace(r.Str), 10, 64)
		if err != nil {
			return 0
		}
		n = v
	}
	if n < 0 {
		return 0
	}

	return n
}

const maxTextLength = 2048

// Provider text is plain text that may carry entities (&amp;, &lt;). Resolve
// them and cap the length. A literal '<' is content, never markup.
func sanitize(s string) string {
	s = strings.TrimSpace(html.UnescapeString(s))
	if utf8.RuneCountInString(s) > maxTextLength {
		s = string([]rune(s)[:maxTextLength])
	}

	return s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
