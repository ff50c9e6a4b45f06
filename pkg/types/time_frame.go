package types

import "time"

// TimeFrame names an analysis window ending at "now". Unrecognized values
// fall back to TimeFrameLastDay.
type TimeFrame string

const (
	TimeFrameLastDay     TimeFrame = "last_day"
	TimeFrameLastWeek    TimeFrame = "last_week"
	TimeFrameLastMonth   TimeFrame = "last_month"
	TimeFrameLast3Months TimeFrame = "last_3_months"
	TimeFrameLast6Months TimeFrame = "last_6_months"
	TimeFrameLastYear    TimeFrame = "last_year"
)

// days returns the window length. The last_day default mirrors the behavior
// callers already depend on for unknown frames.
func (f TimeFrame) days() int {
	switch f {
	case TimeFrameLastWeek:
		return 7
	case TimeFrameLastMonth:
		return 30
	case TimeFrameLast3Months:
		return 90
	case TimeFrameLast6Months:
		return 180
	case TimeFrameLastYear:
		return 365
	default:
		return 1
	}
}

// Window returns the [start, end] date range for the frame, anchored at now.
func (f TimeFrame) Window(now time.Time) (start, end time.Time) {
	end = now
	start = now.AddDate(0, 0, -f.days())
	return start, end
}

// Valid reports whether f is one of the recognized frames.
func (f TimeFrame) Valid() bool {
	switch f {
	case TimeFrameLastDay, TimeFrameLastWeek, TimeFrameLastMonth,
		TimeFrameLast3Months, TimeFrameLast6Months, TimeFrameLastYear:
		return true
	}
	return false
}
