package weather

import (
	"strconv"
	"time"
)

// ForecastDays is the number of calendar days a forecast window covers.
const ForecastDays = 7

// Window is an inclusive UTC time range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies within the window, ends included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ForecastWindow returns the seven-day window starting at midnight UTC of
// startDate and ending at 23:59:59.999 of the sixth day after it.
func ForecastWindow(startDate string) (Window, error) {
	day, err := ParseDate(startDate)
	if err != nil {
		return Window{}, invalid("invalid startDate %q", startDate)
	}
	start := midnightUTC(day)
	return Window{Start: start, End: windowEnd(start)}, nil
}

// windowEnd derives the end boundary from a copy of start.
func windowEnd(start time.Time) time.Time {
	_, end := DayBounds(start.AddDate(0, 0, ForecastDays-1))
	return end
}

// ForecastQuery matches records for exactly location whose date lies in w.
func ForecastQuery(location string, w Window) Query {
	return Query{}.
		Where(Clause{Field: FieldLocation, Operator: Equals, Value: location}).
		Where(Clause{Field: FieldDate, Operator: Between, From: w.Start, To: w.End})
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseDate tries the accepted date layouts in turn, then unix seconds.
// Layouts without a zone are read as UTC. The result is always UTC.
func ParseDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts.UTC(), nil
		}
		lastErr = err
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, lastErr
}
