package worker

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/strykerhq/engagement/internal/engagement"
	"github.com/strykerhq/engagement/internal/ingest"
)

type workflows struct{}

// Upper bound of one ingestion run, provider retries included.
const ingestTimeout = 2 * time.Minute

// IngestPlatform runs a single ingestion of platform.
func (workflows) IngestPlatform(ctx workflow.Context, platform engagement.Source) (ingest.Summary, error) {
	options := workflow.ActivityOptions{
		StartToCloseTimeout: ingestTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, options)

	var sum ingest.Summary
	if err := workflow.ExecuteActivity(ctx, acts.Ingest, platform).Get(ctx, &sum); err != nil {
		workflow.GetLogger(ctx).Error("ingestion workflow failed", "platform", platform, "error", err)
		return ingest.Summary{}, err
	}

	return sum, nil
}
