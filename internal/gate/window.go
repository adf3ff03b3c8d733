package gate

import "time"

// Window restricts entries to a slice of each hour. Hourly up/down markets
// are only worth entering close to resolution, when the outcome price has
// drifted toward certainty.
type Window struct {
	StartMinute int
	EndMinute   int
}

// InWindow reports whether now falls inside [StartMinute, EndMinute].
func (w Window) InWindow(now time.Time) bool {
	minute := now.UTC().Minute()
	return minute >= w.StartMinute && minute <= w.EndMinute
}

// MinutesUntil returns how many minutes remain before the window opens.
// Zero when the window is already open.
func (w Window) MinutesUntil(now time.Time) int {
	minute := now.UTC().Minute()
	if minute >= w.StartMinute && minute <= w.EndMinute {
		return 0
	}
	if minute < w.StartMinute {
		return w.StartMinute - minute
	}
	return 60 - minute + w.StartMinute
}
