package engagement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorString(t *testing.T) {
	ts := time.Date(2025, 7, 4, 18, 30, 0, 0, time.UTC)

	assert.Equal(t, "2025-07-04T18:30:00Z", Cursor{PublishedAt: ts}.String())
	assert.Equal(t, "2025-07-04T18:30:00Z|abc-post", Cursor{PublishedAt: ts, ID: "abc-post"}.String())
}

func TestParseCursor(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Cursor
		wantErr bool
	}{
		{
			name:  "plain timestamp",
			input: "2025-07-04T18:30:00Z",
			want:  Cursor{PublishedAt: time.Date(2025, 7, 4, 18, 30, 0, 0, time.UTC)},
		},
		{
			name:  "offset is normalized to utc",
			input: "2025-07-04T20:30:00.5+02:00",
			want:  Cursor{PublishedAt: time.Date(2025, 7, 4, 18, 30, 0, 500_000_000, time.UTC)},
		},
		{
			name:  "composite",
			input: "2025-07-04T18:30:00Z|abc-post",
			want:  Cursor{PublishedAt: time.Date(2025, 7, 4, 18, 30, 0, 0, time.UTC), ID: "abc-post"},
		},
		{
			name:    "garbage",
			input:   "yesterday",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCursor(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.PublishedAt.Equal(got.PublishedAt))
			assert.Equal(t, tt.want.ID, got.ID)
		})
	}
}

func TestParseSource(t *testing.T) {
	for in, want := range map[string]Source{
		"microblog": SourceMicroblog,
		"twitter":   SourceMicroblog,
		"video":     SourceVideo,
		"youtube":   SourceVideo,
	} {
		got, err := ParseSource(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseSource("instagram")
	assert.Error(t, err)
}
