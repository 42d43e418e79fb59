package engagement

import (
	"fmt"
	"strings"
	"time"
)

// cursorSep separates the timestamp from the tie-breaking id in a composite cursor.
const cursorSep = "|"

// Cursor marks the last item of a feed page. Pages after it only contain
// strictly older posts, or posts with the same timestamp and a smaller id when
// ID is set.
type Cursor struct {
	PublishedAt time.Time
	ID          string
}

// String renders the cursor as an ISO-8601 timestamp, suffixed with the id only
// when one is needed to break a timestamp tie.
func (c Cursor) String() string {
	ts := FormatTime(c.PublishedAt)
	if c.ID == "" {
		return ts
	}

	return ts + cursorSep + c.ID
}

func ParseCursor(s string) (Cursor, error) {
	ts, id, _ := strings.Cut(s, cursorSep)
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor timestamp: %w", err)
	}

	return Cursor{PublishedAt: t.UTC(), ID: id}, nil
}

// FormatTime is the ISO-8601 form used for cursors. It matches how timestamps
// are encoded in JSON responses.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
