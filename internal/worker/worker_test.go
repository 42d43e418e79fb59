package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/strykerhq/engagement/internal/engagement"
	"github.com/strykerhq/engagement/internal/ingest"
)

type stubRunner struct {
	sum   ingest.Summary
	err   error
	calls int
}

func (s *stubRunner) Run(_ context.Context, platform engagement.Source) (ingest.Summary, error) {
	s.calls++
	s.sum.Platform = platform
	return s.sum, s.err
}

func TestIngestPlatform(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	runner := &stubRunner{sum: ingest.Summary{Normalized: 3, Inserted: 2, Updated: 1}}
	env.RegisterActivity(&activities{runner: runner})

	env.ExecuteWorkflow(workflows{}.IngestPlatform, engagement.SourceVideo)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var sum ingest.Summary
	require.NoError(t, env.GetWorkflowResult(&sum))
	assert.Equal(t, ingest.Summary{Platform: engagement.SourceVideo, Normalized: 3, Inserted: 2, Updated: 1}, sum)
	assert.Equal(t, 1, runner.calls)
}

func TestIngestPlatform_FailureIsNotRetried(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	runner := &stubRunner{err: fmt.Errorf("%w: %w", ingest.ErrFetch, errors.New("status 503"))}
	env.RegisterActivity(&activities{runner: runner})

	env.ExecuteWorkflow(workflows{}.IngestPlatform, engagement.SourceMicroblog)
	require.True(t, env.IsWorkflowCompleted())

	err := env.GetWorkflowError()
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, errTypeFetch, appErr.Type())
	assert.Equal(t, 1, runner.calls)
}

func TestIngestActivity_ErrorTypes(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: fmt.Errorf("%w: boom", ingest.ErrFetch), want: errTypeFetch},
		{err: fmt.Errorf("%w: boom", ingest.ErrPersist), want: errTypePersist},
		{err: errors.New("unknown platform"), want: errTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var ts testsuite.WorkflowTestSuite
			env := ts.NewTestActivityEnvironment()
			a := &activities{runner: &stubRunner{err: tt.err}}
			env.RegisterActivity(a)

			_, err := env.ExecuteActivity(a.Ingest, engagement.SourceVideo)
			require.Error(t, err)

			var appErr *temporal.ApplicationError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.want, appErr.Type())
			assert.True(t, appErr.NonRetryable())
		})
	}
}

func TestScheduleID(t *testing.T) {
	assert.Equal(t, "ingest-microblog", scheduleID(ingest.Schedule{Platform: engagement.SourceMicroblog}))
	assert.Equal(t, "ingest-video", scheduleID(ingest.Schedule{Platform: engagement.SourceVideo}))
}

type emptySearch struct{}

func (emptySearch) Search(context.Context, string, int) ([]byte, error) {
	return []byte(`{"items":[]}`), nil
}

type noPosts struct{}

func (noPosts) Normalize(context.Context, engagement.Source, []byte) ([]engagement.Post, error) {
	return nil, nil
}

func TestMetricsServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	coord := ingest.NewCoordinator(nil, noPosts{},
		ingest.Pipelines(ingest.Config{}, emptySearch{}, emptySearch{}),
		ingest.WithMetrics(ingest.NewMetrics(reg)),
	)
	_, err := coord.Run(context.Background(), engagement.SourceVideo)
	require.NoError(t, err)

	srv := httptest.NewServer(NewMetricsServer(0, reg).Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	byts, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(byts), `engagement_ingest_runs_total{outcome="success",platform="video"} 1`)
	assert.Contains(t, string(byts), `engagement_ingest_run_duration_seconds_count{platform="video"} 1`)
}
