package types

import (
	"fmt"
	"time"
)

// Period is a Peaje 2.0TD billing period label.
type Period string

const (
	PeriodP1 Period = "P1"
	PeriodP2 Period = "P2"
	PeriodP3 Period = "P3"
)

// PeriodResult is the period in effect at some instant together with the
// period that follows it and how long until it starts.
type PeriodResult struct {
	Current Period        `json:"current"`
	Next    Period        `json:"next"`
	Until   time.Duration `json:"until"`
}

// NextStart returns the instant the next period starts, relative to from.
func (r PeriodResult) NextStart(from time.Time) time.Time {
	return from.Add(r.Until)
}

// FormatUntil renders a duration as HH:MM, rounding down to the minute.
// Negative durations render as 00:00.
func FormatUntil(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Minute)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
