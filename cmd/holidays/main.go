// Command holidays prints the PVPC holiday list of a year and optionally
// stores it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"

	"github.com/pvpcnext/pvpcnext/pkg/holidays"
	"github.com/pvpcnext/pvpcnext/pkg/log"
	"github.com/pvpcnext/pvpcnext/pkg/storage"
)

func main() {
	s := storage.Configured()
	r := holidays.Configured()
	yearFlag := lflag.String("year", strconv.Itoa(time.Now().Year()), "Year to resolve holidays for")
	persist := lflag.Bool("persist", false, "Store the resolved holidays with the storage provider")
	lflag.Configure()

	level, err := log.LevelFromLLog(llog.GetLevel())
	if err != nil {
		panic(err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	log.SetDefaultLogLevel(level)

	year, err := strconv.Atoi(*yearFlag)
	if err != nil {
		panic(fmt.Sprintf("invalid year %q: %v", *yearFlag, err))
	}

	ctx := log.WithAttrs(context.Background(), slog.Int("year", year))
	err = printHolidays(ctx, r, s, year, *persist)
	if closeErr := s.Close(); closeErr != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", closeErr)
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "holidays failed", "error", err)
		os.Exit(1)
	}
}

func printHolidays(ctx context.Context, r *holidays.Resolver, s storage.Database, year int, persist bool) error {
	set, err := r.Holidays(ctx, year)
	if err != nil {
		return fmt.Errorf("failed to resolve holidays: %w", err)
	}
	for _, e := range set.Entries() {
		fmt.Printf("%s\t%s\t%s\n", e.Day, e.Day.In(time.UTC).Weekday().String()[:3], e.Description)
	}

	if !persist {
		return nil
	}
	if err := s.SetHolidaySet(ctx, year, r.Source().Kind(), set); err != nil {
		return fmt.Errorf("failed to store holidays: %w", err)
	}
	log.Ctx(ctx).InfoContext(ctx, "stored holidays", slog.Int("count", len(set)))
	return nil
}
