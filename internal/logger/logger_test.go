package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCtx(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json")

	ctx := Ctx(context.Background(), slog.String("platform", "video"))
	child := Ctx(ctx, slog.String("run_id", "r1"))
	sibling := Ctx(ctx, slog.String("run_id", "r2"))

	l.InfoContext(child, "ran")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "video", rec["platform"])
	assert.Equal(t, "r1", rec["run_id"])

	buf.Reset()
	l.With("component", "ingest").InfoContext(sibling, "ran")
	rec = map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "r2", rec["run_id"])
	assert.Equal(t, "ingest", rec["component"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "text").InfoContext(Ctx(context.Background(), slog.Int("n", 3)), "hello")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "n=3")
}
