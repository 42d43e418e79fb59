package worker

import (
	"context"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	"github.com/strykerhq/engagement/internal/ingest"
)

func scheduleID(sch ingest.Schedule) string {
	return "ingest-" + string(sch.Platform)
}

// Creates the schedule for one platform, or brings an existing one in line with
// the configured interval. Overlapping runs of a platform are skipped, so there
// is never more than one writer per platform.
func ensureSchedule(ctx context.Context, sc client.ScheduleClient, sch ingest.Schedule) error {
	var (
		id   = scheduleID(sch)
		spec = client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: sch.Interval}},
		}
	)

	handle := sc.GetHandle(ctx, id)
	if _, err := handle.Describe(ctx); err != nil {
		_, err = sc.Create(ctx, client.ScheduleOptions{
			ID:   id,
			Spec: spec,
			Action: &client.ScheduleWorkflowAction{
				ID:        id,
				Workflow:  workflows{}.IngestPlatform,
				Args:      []any{sch.Platform},
				TaskQueue: TaskQueue,
			},
			Overlap:            enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
			TriggerImmediately: true,
		})
		return err
	}

	return handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			s := input.Description.Schedule
			s.Spec = &spec
			if s.Policy == nil {
				s.Policy = &client.SchedulePolicies{}
			}
			s.Policy.Overlap = enumspb.SCHEDULE_OVERLAP_POLICY_SKIP

			return &client.ScheduleUpdate{Schedule: &s}, nil
		},
	})
}
