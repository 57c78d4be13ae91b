package domain

import (
	"testing"
	"time"
)

func TestDropStatusAt(t *testing.T) {
	loc := time.UTC
	drop := Drop{
		StartDate:  "2025-06-01",
		StartTime:  "10:00",
		HasEndDate: true,
		EndDate:    "2025-06-03",
		EndTime:    "18:30",
	}
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, loc)
	end := time.Date(2025, 6, 3, 18, 30, 0, 0, loc)

	cases := []struct {
		name string
		now  time.Time
		want DropStatus
	}{
		{name: "before start", now: start.Add(-time.Second), want: DropStatusScheduled},
		{name: "at start", now: start, want: DropStatusActive},
		{name: "during", now: start.Add(24 * time.Hour), want: DropStatusActive},
		{name: "at end", now: end, want: DropStatusActive},
		{name: "after end", now: end.Add(time.Second), want: DropStatusEnded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DropStatusAt(drop, tc.now, loc)
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
			if again := DropStatusAt(drop, tc.now, loc); again != got {
				t.Fatalf("expected repeatable result, got %s then %s", got, again)
			}
		})
	}
}

func TestDropStatusAtIgnoresEndWithoutFlag(t *testing.T) {
	drop := Drop{StartDate: "2025-06-01", StartTime: "10:00", EndDate: "2025-06-02", EndTime: "10:00"}
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := DropStatusAt(drop, now, time.UTC); got != DropStatusActive {
		t.Fatalf("expected open-ended drop to stay active, got %s", got)
	}

	drop.HasEndDate = true
	drop.EndTime = ""
	if got := DropStatusAt(drop, now, time.UTC); got != DropStatusActive {
		t.Fatalf("expected incomplete end to be ignored, got %s", got)
	}
}

func TestDropStatusAtFutureOpenEnded(t *testing.T) {
	drop := Drop{StartDate: "2031-01-01", StartTime: "09:00:00"}
	now := time.Date(2030, 12, 31, 23, 0, 0, 0, time.UTC)
	if got := DropStatusAt(drop, now, time.UTC); got != DropStatusScheduled {
		t.Fatalf("expected scheduled, got %s", got)
	}
}

func TestDropStatusAtUsesStoreLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	drop := Drop{StartDate: "2025-06-01", StartTime: "10:00"}
	// 13:30 UTC is 09:30 in New York during daylight saving time.
	now := time.Date(2025, 6, 1, 13, 30, 0, 0, time.UTC)
	if got := DropStatusAt(drop, now, ny); got != DropStatusScheduled {
		t.Fatalf("expected scheduled in New York, got %s", got)
	}
	if got := DropStatusAt(drop, now, time.UTC); got != DropStatusActive {
		t.Fatalf("expected active in UTC, got %s", got)
	}
}
