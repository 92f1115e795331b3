// Package retention computes how long meeting transcripts and recordings stay
// downloadable after a meeting ends.
package retention

import "time"

// DefaultDays is the retention window used when none is configured.
const DefaultDays = 14

const day = 24 * time.Hour

// Window evaluates the retention window against a clock.
type Window struct {
	days int
	now  func() time.Time
}

// New returns a window of days length. Non-positive values fall back to DefaultDays.
// A nil now uses time.Now.
func New(days int, now func() time.Time) Window {
	if days <= 0 {
		days = DefaultDays
	}
	if now == nil {
		now = time.Now
	}
	return Window{days: days, now: now}
}

// Days returns the configured window length.
func (w Window) Days() int {
	if w.days <= 0 {
		return DefaultDays
	}
	return w.days
}

func (w Window) clock() time.Time {
	if w.now == nil {
		return time.Now()
	}
	return w.now()
}

// ExpiryDate returns endedAt plus the retention window.
func (w Window) ExpiryDate(endedAt time.Time) time.Time {
	return endedAt.Add(time.Duration(w.Days()) * day)
}

// IsAvailable reports whether resources of a meeting that ended at endedAt
// are still fetchable. A meeting that never ended is unavailable.
func (w Window) IsAvailable(endedAt *time.Time) bool {
	if endedAt == nil {
		return false
	}
	return w.clock().Before(w.ExpiryDate(*endedAt))
}

// DaysUntilExpiry returns whole days left in the window, never negative.
// A meeting that never ended has zero days left.
func (w Window) DaysUntilExpiry(endedAt *time.Time) int {
	if endedAt == nil {
		return 0
	}
	left := w.ExpiryDate(*endedAt).Sub(w.clock())
	if left <= 0 {
		return 0
	}
	return int(left / day)
}

// Status is the derived retention view of one meeting.
type Status struct {
	ExpiresAt       *time.Time `json:"expiresAt"`
	DaysUntilExpiry int        `json:"daysUntilExpiry"`
	Available       bool       `json:"resourcesAvailable"`
}

// StatusOf evaluates all derived fields at once.
func (w Window) StatusOf(endedAt *time.Time) Status {
	if endedAt == nil {
		return Status{}
	}
	expires := w.ExpiryDate(*endedAt)
	return Status{
		ExpiresAt:       &expires,
		DaysUntilExpiry: w.DaysUntilExpiry(endedAt),
		Available:       w.IsAvailable(endedAt),
	}
}
