// Package worker runs ingestion on Temporal instead of the in-process
// scheduler. Each platform gets a schedule that starts one workflow per tick.
package worker

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/strykerhq/engagement/internal/ingest"
)

const TaskQueue = "engagement-ingest"

type Config struct {
	TemporalHostPort string `env:"TEMPORAL_HOST_PORT, required"`
	Namespace        string `env:"TEMPORAL_NAMESPACE, default=default"`
	MetricsPort      int    `env:"METRICS_PORT, default=9464"`
}

// NewWorker sets up the worker with registration of workflows, activities, and schedules.
func NewWorker(ctx context.Context, runner ingest.Runner, cli client.Client, schedules []ingest.Schedule) (worker.Worker, error) {
	w := worker.New(cli, TaskQueue, worker.Options{})

	wfs := workflows{}
	w.RegisterWorkflow(wfs.IngestPlatform)
	w.RegisterActivity(&activities{runner: runner})

	for _, sch := range schedules {
		if err := ensureSchedule(ctx, cli.ScheduleClient(), sch); err != nil {
			return nil, fmt.Errorf("error ensuring schedule for %s: %w", sch.Platform, err)
		}
	}

	return w, nil
}

// Error types
//
// These are error types in the temporal sense, not the general "go" error types sense.
// They are used since between activities error types are marshaled and type information is lost.
const (
	errTypeFetch   = "fetch"
	errTypePersist = "persist"
	errTypeOther   = "internal"
)
