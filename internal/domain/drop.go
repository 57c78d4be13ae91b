package domain

import (
	"strings"
	"time"
)

var dropTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// DropStart combines StartDate and StartTime in loc.
func DropStart(drop Drop, loc *time.Location) (time.Time, bool) {
	return combineDateTime(drop.StartDate, drop.StartTime, loc)
}

// DropEnd returns the end instant only for drops with an explicit, complete end.
func DropEnd(drop Drop, loc *time.Location) (time.Time, bool) {
	if !drop.HasEndDate {
		return time.Time{}, false
	}
	return combineDateTime(drop.EndDate, drop.EndTime, loc)
}

// DropStatusAt derives the drop state at now. The start boundary is inclusive and the end
// boundary is exclusive: now == start is active, now == end is still active.
func DropStatusAt(drop Drop, now time.Time, loc *time.Location) DropStatus {
	if start, ok := DropStart(drop, loc); ok && now.Before(start) {
		return DropStatusScheduled
	}
	if end, ok := DropEnd(drop, loc); ok && now.After(end) {
		return DropStatusEnded
	}
	return DropStatusActive
}

func combineDateTime(date, clock string, loc *time.Location) (time.Time, bool) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dropTimeLayouts {
		if t, err := time.ParseInLocation(layout, date+"T"+clock, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
