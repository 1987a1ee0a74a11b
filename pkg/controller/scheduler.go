package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pvpcnext/pvpcnext/pkg/log"
)

// DefaultRefreshSchedule refreshes every half hour, which picks up the next
// day's prices shortly after they are published in the evening.
const DefaultRefreshSchedule = "*/30 * * * *"

// Scheduler runs Coordinator.Refresh on a cron schedule.
type Scheduler struct {
	cron  *cron.Cron
	coord *Coordinator
	now   func() time.Time
}

// NewScheduler registers the refresh job. schedule is a standard five field cron
// expression evaluated in the coordinator's time zone.
func NewScheduler(coord *Coordinator, schedule string) (*Scheduler, error) {
	s := &Scheduler{
		cron:  cron.New(cron.WithLocation(coord.Location())),
		coord: coord,
		now:   time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, func() {
		s.refresh(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) refresh(ctx context.Context) {
	start := s.now()
	log.Ctx(ctx).DebugContext(ctx, "running scheduled refresh")
	if err := s.coord.Refresh(ctx, start); err != nil {
		// already logged by Refresh
		return
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"scheduled refresh completed",
		slog.Duration("took", s.now().Sub(start)),
		slog.Time("next", s.Next()),
	)
}

// Run refreshes once, then runs the schedule until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.refresh(ctx)
	s.cron.Start()
	log.Ctx(ctx).InfoContext(ctx, "scheduler started", slog.Time("next", s.Next()))

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	log.Ctx(ctx).InfoContext(ctx, "scheduler stopped")
	return nil
}

// Next returns when the refresh job runs next. It is zero until Run starts
// the schedule.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
