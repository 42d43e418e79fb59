package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/strykerhq/engagement/internal/engagement"
)

// Runner performs a single ingestion run.
type Runner interface {
	Run(ctx context.Context, platform engagement.Source) (Summary, error)
}

// Schedule is how often one platform is ingested.
type Schedule struct {
	Platform engagement.Source
	Interval time.Duration
}

// Scheduler keeps one loop per platform going until its context ends. The loops
// share nothing but the runner.
type Scheduler struct {
	runner     Runner
	schedules  []Schedule
	runTimeout time.Duration
}

func NewScheduler(runner Runner, schedules []Schedule, runTimeout time.Duration) *Scheduler {
	return &Scheduler{runner: runner, schedules: schedules, runTimeout: runTimeout}
}

// Run blocks until ctx is done. Each loop runs immediately, then waits its
// interval after every run regardless of how the run went.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, sch := range s.schedules {
		if sch.Interval <= 0 {
			return fmt.Errorf("platform %s needs a positive interval", sch.Platform)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, sch := range s.schedules {
		g.Go(func() error {
			s.loop(ctx, sch)
			return nil
		})
	}

	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, sch Schedule) {
	slog.InfoContext(ctx, "ingestion loop started", "platform", sch.Platform, "interval", sch.Interval)

	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "ingestion loop stopped", "platform", sch.Platform)
			return
		case <-t.C:
		}

		s.runOnce(ctx, sch.Platform)
		t.Reset(sch.Interval)
	}
}

// A run can fail or even panic; neither ends the loop.
func (s *Scheduler) runOnce(ctx context.Context, platform engagement.Source) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "ingestion run panicked", "platform", platform, "panic", r)
		}
	}()

	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	// The runner logs its own failures.
	_, _ = s.runner.Run(ctx, platform)
}
