package types

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
)

// HolidayRecord is one raw holiday entry as produced by a holiday source.
// Empty Province and Locality mean national scope.
type HolidayRecord struct {
	Day         civil.Date `json:"day"`
	Description string     `json:"description"`
	HolidayType string     `json:"holidayType"`
	Province    string     `json:"province"`
	Locality    string     `json:"locality"`
}

// HolidaySet maps each holiday date of a year to its display name.
type HolidaySet map[civil.Date]string

// Contains reports whether d is a holiday.
func (s HolidaySet) Contains(d civil.Date) bool {
	_, ok := s[d]
	return ok
}

// Dates returns the holiday dates in ascending order.
func (s HolidaySet) Dates() []civil.Date {
	dates := make([]civil.Date, 0, len(s))
	for d := range s {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})
	return dates
}

// Clone returns a copy of the set that can be modified independently.
func (s HolidaySet) Clone() HolidaySet {
	c := make(HolidaySet, len(s))
	for d, name := range s {
		c[d] = name
	}
	return c
}

// HolidayEntry is a single element of a HolidaySet, used where an ordered
// list is easier to consume than a map.
type HolidayEntry struct {
	Day         civil.Date `json:"day"`
	Description string     `json:"description"`
}

// Entries returns the set as a list ordered by date.
func (s HolidaySet) Entries() []HolidayEntry {
	dates := s.Dates()
	entries := make([]HolidayEntry, 0, len(dates))
	for _, d := range dates {
		entries = append(entries, HolidayEntry{Day: d, Description: s[d]})
	}
	return entries
}

// HolidaySetFromEntries builds a set from a list, keeping the first name
// seen for a repeated date.
func HolidaySetFromEntries(entries []HolidayEntry) HolidaySet {
	s := make(HolidaySet, len(entries))
	for _, e := range entries {
		if _, ok := s[e.Day]; ok {
			continue
		}
		s[e.Day] = e.Description
	}
	return s
}

// IsWeekend reports whether d falls on a Saturday or Sunday.
func IsWeekend(d civil.Date) bool {
	switch d.In(time.UTC).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}
