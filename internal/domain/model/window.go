package model

import "time"

// EpochSentinel is the window start used when a provider has no stored data.
var EpochSentinel = time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC)

// Window is the time range a pull re-fetches.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowStart computes the start of the next pull: the high-water-mark minus
// lookbackDays, or EpochSentinel when the provider has no data yet.
func WindowStart(highWaterMark time.Time, hasData bool, lookbackDays int) time.Time {
	if !hasData || highWaterMark.IsZero() {
		return EpochSentinel
	}
	if lookbackDays < 0 {
		lookbackDays = 0
	}
	start := highWaterMark.UTC().AddDate(0, 0, -lookbackDays)
	if start.Before(EpochSentinel) {
		return EpochSentinel
	}
	return start
}

// Day truncates t to midnight UTC of its calendar date in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
