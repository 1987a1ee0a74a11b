package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pvpcnext/pvpcnext/pkg/log"
)

const (
	// maxHistoryRange bounds a single history request.
	maxHistoryRange = 7 * 24 * time.Hour
	// defaultHistoryRange is used when start or end is missing.
	defaultHistoryRange = 24 * time.Hour
)

func (s *Server) handleHistoryPrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start, end, err := s.parseTimeRange(r)
	if err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}

	prices, err := s.storage.GetPriceHistory(ctx, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(
			ctx,
			"failed to read price history",
			slog.Time("start", start),
			slog.Time("end", end),
			slog.Any("error", err),
		)
		writeJSONError(w, "failed to get prices", http.StatusInternalServerError)
		return
	}

	// published prices never change, so ranges that ended before today can
	// be cached for a day
	maxAge := 60
	if end.Before(s.now().Truncate(24 * time.Hour)) {
		maxAge = 86400
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("private, max-age=%d", maxAge))
	writeJSON(w, prices)
}

// parseTimeRange reads the RFC3339 start and end query parameters. Without
// both it returns the last day.
func (s *Server) parseTimeRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	rawStart, rawEnd := q.Get("start"), q.Get("end")
	if rawStart == "" || rawEnd == "" {
		end := s.now()
		return end.Add(-defaultHistoryRange), end, nil
	}

	start, err := time.Parse(time.RFC3339, rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
	}

	switch {
	case end.Before(start):
		return time.Time{}, time.Time{}, errors.New("end is before start")
	case end.Sub(start) > maxHistoryRange:
		return time.Time{}, time.Time{}, fmt.Errorf("range is longer than %s", maxHistoryRange)
	}
	return start, end, nil
}
