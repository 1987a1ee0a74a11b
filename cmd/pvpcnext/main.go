package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
	"golang.org/x/sync/errgroup"

	"github.com/pvpcnext/pvpcnext/pkg/controller"
	"github.com/pvpcnext/pvpcnext/pkg/holidays"
	"github.com/pvpcnext/pvpcnext/pkg/log"
	"github.com/pvpcnext/pvpcnext/pkg/server"
	"github.com/pvpcnext/pvpcnext/pkg/storage"
	"github.com/pvpcnext/pvpcnext/pkg/utility"
)

func main() {
	u := utility.Configured()
	s := storage.Configured()
	r := holidays.Configured()
	c := controller.Configured(r, u, s)
	schedule := lflag.String("refresh-schedule", controller.DefaultRefreshSchedule, "Cron schedule for refreshing holidays and prices")

	srv := server.Configured(c, s)

	lflag.Configure()

	// lflag only configures llog
	level, err := log.LevelFromLLog(llog.GetLevel())
	if err != nil {
		panic(err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
	log.SetDefaultLogLevel(level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, c, r, s, srv, *schedule); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "pvpcnext failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "pvpcnext exited")
}

// run serves until ctx is done. Storage is closed on every return path.
func run(
	ctx context.Context,
	c *controller.Coordinator,
	r *holidays.Resolver,
	s storage.Database,
	srv *server.Server,
	schedule string,
) error {
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	if err := c.LoadSettings(ctx); err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	// stored settings may have switched the holiday source away from the flag
	source := c.Settings().HolidaySource
	active, err := r.WithSource(source)
	if err != nil {
		return fmt.Errorf("invalid holiday source %q: %w", source, err)
	}
	// a failing warmup is not fatal, refresh falls back to stored or
	// provisional holidays
	year := holidays.LocalYear(time.Now(), c.Location())
	if _, err := holidays.Warmup(ctx, active.Source(), year); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "holiday source warmup failed", "error", err)
	}

	sched, err := controller.NewScheduler(c, schedule)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})
	return g.Wait()
}
