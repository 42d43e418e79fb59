package worker

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/strykerhq/engagement/internal/engagement"
	"github.com/strykerhq/engagement/internal/ingest"
)

type activities struct {
	runner ingest.Runner
}

// Instance to make the workflow a bit more readable
var acts = &activities{}

// Ingest performs one ingestion run. Failures are never retried here; the
// next scheduled run is the retry.
func (a *activities) Ingest(ctx context.Context, platform engagement.Source) (ingest.Summary, error) {
	l := activity.GetLogger(ctx)

	sum, err := a.runner.Run(ctx, platform)
	if err != nil {
		errType := errTypeOther
		switch {
		case errors.Is(err, ingest.ErrFetch):
			errType = errTypeFetch
		case errors.Is(err, ingest.ErrPersist):
			errType = errTypePersist
		}
		l.Warn("ingestion failed", "platform", platform, "type", errType, "error", err)

		return sum, temporal.NewNonRetryableApplicationError("ingestion failed", errType, err)
	}

	l.Info("ingested", "platform", platform, "inserted", sum.Inserted, "updated", sum.Updated)

	return sum, nil
}
