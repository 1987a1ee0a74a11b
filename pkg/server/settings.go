package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pvpcnext/pvpcnext/pkg/log"
	"github.com/pvpcnext/pvpcnext/pkg/types"
)

// SettingsRes is the response type for GetSettings
type SettingsRes struct {
	types.Settings
	Tariffs            []string           `json:"tariffs"`
	HolidaySources     []string           `json:"holidaySources"`
	BetterPriceTargets []types.PriceLevel `json:"betterPriceTargets"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, SettingsRes{
		Settings:           s.coord.Settings(),
		Tariffs:            types.Tariffs,
		HolidaySources:     types.HolidaySources,
		BetterPriceTargets: types.BetterPriceTargets,
	})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var settings types.Settings
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&settings); err != nil {
		writeJSONError(w, "invalid settings body", http.StatusBadRequest)
		return
	}

	// reject unknown values instead of silently normalising them to defaults
	if err := types.NormalizeSettings(settings).Validate(); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if src := strings.ToLower(strings.TrimSpace(settings.HolidaySource)); src != "" && src != types.HolidaySourceCSV &&
		types.NormalizeHolidaySource(src) == types.HolidaySourceCSV {
		writeJSONError(w, "unsupported holiday source: "+settings.HolidaySource, http.StatusBadRequest)
		return
	}
	if _, ok := parseTarget(string(settings.BetterPriceTarget)); !ok {
		writeJSONError(w, "unsupported better price target: "+string(settings.BetterPriceTarget), http.StatusBadRequest)
		return
	}

	applied, err := s.coord.UpdateSettings(ctx, settings)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to update settings", slog.Any("error", err))
		writeJSONError(w, "failed to update settings", http.StatusInternalServerError)
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "updated settings", slog.String("tariff", applied.Tariff))
	writeJSON(w, applied)
}
