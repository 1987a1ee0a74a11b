package types

import (
	"fmt"
	"strings"
)

// CurrentSettingsVersion is the current version of the settings struct.
// Increment this value when adding new fields that require default values.
const CurrentSettingsVersion = 3

const (
	// TariffMainland covers the peninsula, the Balearic and the Canary islands.
	TariffMainland = "2.0TD"
	// TariffCeutaMelilla has its own peak-hour tables.
	TariffCeutaMelilla = "2.0TD (Ceuta/Melilla)"

	HolidaySourceCSV      = "csv"
	HolidaySourceNational = "national"

	DefaultPowerKW = 3.3
)

// Tariffs lists the supported tariff identifiers.
var Tariffs = []string{TariffMainland, TariffCeutaMelilla}

// HolidaySources lists the supported holiday source identifiers.
var HolidaySources = []string{HolidaySourceCSV, HolidaySourceNational}

// BetterPriceTargets lists the levels accepted as a better-price target.
var BetterPriceTargets = []PriceLevel{PriceLevelNeutral, PriceLevelCheap, PriceLevelVeryCheap}

// legacy tariff identifiers from before the 2.0TD toll structure
var tariffAliases = map[string]string{
	"discrimination":        TariffMainland,
	"normal":                TariffMainland,
	"electric_car":          TariffMainland,
	"pcb":                   TariffMainland,
	"cym":                   TariffCeutaMelilla,
	"2.0td_ceuta":           TariffCeutaMelilla,
	"2.0td (ceuta/melilla)": TariffCeutaMelilla,
	"2.0td":                 TariffMainland,
}

// Settings represents the tariff configuration of an installation.
type Settings struct {
	Tariff            string     `json:"tariff"`
	HolidaySource     string     `json:"holidaySource"`
	BetterPriceTarget PriceLevel `json:"betterPriceTarget"`

	// Contracted power, informative only.
	PowerP1KW float64 `json:"powerP1KW"`
	PowerP3KW float64 `json:"powerP3KW"`
}

// PeakZone reports whether the Ceuta/Melilla hour tables apply.
func (s Settings) PeakZone() bool {
	return NormalizeTariff(s.Tariff) == TariffCeutaMelilla
}

// NormalizeTariff maps legacy identifiers onto the supported tariffs.
// Unknown values are returned unchanged.
func NormalizeTariff(tariff string) string {
	if t, ok := tariffAliases[strings.ToLower(strings.TrimSpace(tariff))]; ok {
		return t
	}
	return tariff
}

// NormalizeHolidaySource returns the canonical holiday source, defaulting to
// csv for empty or unknown values.
func NormalizeHolidaySource(source string) string {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case HolidaySourceNational, "python-holidays", "holidays":
		return HolidaySourceNational
	default:
		return HolidaySourceCSV
	}
}

// NormalizeBetterPriceTarget returns the canonical target level, defaulting to
// neutral for empty or unknown values.
func NormalizeBetterPriceTarget(target string) PriceLevel {
	switch strings.ToLower(strings.TrimSpace(target)) {
	case "very cheap", "very_cheap":
		return PriceLevelVeryCheap
	case "cheap":
		return PriceLevelCheap
	default:
		return PriceLevelNeutral
	}
}

// NormalizeSettings canonicalises legacy values and fills missing powers.
func NormalizeSettings(s Settings) Settings {
	s.Tariff = NormalizeTariff(s.Tariff)
	if s.Tariff == "" {
		s.Tariff = TariffMainland
	}
	s.HolidaySource = NormalizeHolidaySource(s.HolidaySource)
	s.BetterPriceTarget = NormalizeBetterPriceTarget(string(s.BetterPriceTarget))
	if s.PowerP1KW == 0 {
		s.PowerP1KW = DefaultPowerKW
	}
	if s.PowerP3KW == 0 {
		s.PowerP3KW = DefaultPowerKW
	}
	return s
}

// Validate checks the settings only reference supported values.
func (s Settings) Validate() error {
	var found bool
	for _, t := range Tariffs {
		if s.Tariff == t {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("unsupported tariff: %q", s.Tariff)
	}
	if s.HolidaySource != HolidaySourceCSV && s.HolidaySource != HolidaySourceNational {
		return fmt.Errorf("unsupported holiday source: %q", s.HolidaySource)
	}
	if _, ok := TargetMaxRatio(s.BetterPriceTarget); !ok {
		return fmt.Errorf("unsupported better price target: %q", s.BetterPriceTarget)
	}
	if s.PowerP1KW < 0 || s.PowerP3KW < 0 {
		return fmt.Errorf("contracted power cannot be negative")
	}
	return nil
}

// MigrateSettings migrates the settings to the current version.
// It returns the migrated settings, a boolean indicating if changes were made, and an error if migration failed.
func MigrateSettings(s Settings, currentVersion int) (Settings, bool, error) {
	if currentVersion >= CurrentSettingsVersion {
		return s, false, nil
	}

	migrated := false
	for version := currentVersion + 1; version <= CurrentSettingsVersion; version++ {
		switch version {
		case 1:
			// version 1: initial defaults
			if s.Tariff == "" {
				s.Tariff = TariffMainland
				migrated = true
			}
			if s.HolidaySource == "" {
				s.HolidaySource = HolidaySourceCSV
				migrated = true
			}
			if s.BetterPriceTarget == "" {
				s.BetterPriceTarget = PriceLevelNeutral
				migrated = true
			}
			if s.PowerP1KW == 0 {
				s.PowerP1KW = DefaultPowerKW
				migrated = true
			}
			if s.PowerP3KW == 0 {
				s.PowerP3KW = DefaultPowerKW
				migrated = true
			}
		case 2:
			// version 2: legacy tariff names and spaced target labels
			if t := NormalizeTariff(s.Tariff); t != s.Tariff {
				s.Tariff = t
				migrated = true
			}
			if t := NormalizeBetterPriceTarget(string(s.BetterPriceTarget)); t != s.BetterPriceTarget {
				s.BetterPriceTarget = t
				migrated = true
			}
		case 3:
			// version 3: python-holidays source renamed to national
			if src := NormalizeHolidaySource(s.HolidaySource); src != s.HolidaySource {
				s.HolidaySource = src
				migrated = true
			}
		default:
			return s, false, fmt.Errorf("unknown settings version: %d", version)
		}
	}

	return s, migrated, nil
}
