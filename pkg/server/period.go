package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/pvpcnext/pvpcnext/pkg/controller"
	"github.com/pvpcnext/pvpcnext/pkg/holidays"
	"github.com/pvpcnext/pvpcnext/pkg/log"
	"github.com/pvpcnext/pvpcnext/pkg/types"
)

func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	snap := s.coord.Snapshot(r.Context(), s.now())
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, snap)
}

type holidaysRes struct {
	Year        int                  `json:"year"`
	Source      string               `json:"source"`
	Provisional bool                 `json:"provisional"`
	Holidays    []types.HolidayEntry `json:"holidays"`
}

func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	year := s.now().In(s.coord.Location()).Year()
	if v := r.URL.Query().Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1900 || parsed > 2200 {
			writeJSONError(w, "invalid year", http.StatusBadRequest)
			return
		}
		year = parsed
	}

	set, err := s.coord.Holidays(ctx, year)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get holidays", slog.Int("year", year), slog.Any("error", err))
		if errors.Is(err, holidays.ErrDataSource) {
			writeJSONError(w, "holiday source unavailable", http.StatusBadGateway)
			return
		}
		writeJSONError(w, "failed to get holidays", http.StatusInternalServerError)
		return
	}

	writeJSON(w, holidaysRes{
		Year:        year,
		Source:      s.coord.Settings().HolidaySource,
		Provisional: s.coord.Provisional(year),
		Holidays:    set.Entries(),
	})
}

func (s *Server) handleNextPrice(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	next, ok := s.coord.NextPrice(now)
	if !ok {
		writeJSONError(w, "no upcoming prices", http.StatusNotFound)
		return
	}
	writeJSON(w, controller.NewPriceInfo(now, next, true))
}

// parseTarget accepts the better-price targets and their spaced spelling.
func parseTarget(raw string) (types.PriceLevel, bool) {
	if raw == "" {
		return "", true
	}
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "_")
	target := types.PriceLevel(key)
	if _, ok := types.TargetMaxRatio(target); !ok {
		return "", false
	}
	return target, true
}

func (s *Server) handleBetterPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	target, ok := parseTarget(r.URL.Query().Get("target"))
	if !ok {
		writeJSONError(w, "invalid target", http.StatusBadRequest)
		return
	}
	now := s.now()
	better, ok := s.coord.BetterPrice(ctx, now, target)
	if !ok {
		writeJSONError(w, "no upcoming prices", http.StatusNotFound)
		return
	}
	writeJSON(w, controller.NewPriceInfo(now, better, true))
}

type refreshRes struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.coord.Refresh(ctx, s.now()); err != nil {
		writeStatusJSON(w, http.StatusBadGateway, refreshRes{Status: "failed", Error: err.Error()})
		return
	}
	writeJSON(w, refreshRes{Status: "ok"})
}
