package timeutil

import (
	"testing"
	"time"
)

func TestDayBoundaries(t *testing.T) {
	now := time.Date(2026, time.March, 14, 15, 9, 26, 0, time.UTC)

	if got := DayStart(now); !got.Equal(time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("DayStart = %v", got)
	}
	if got := NextDayStart(now); !got.Equal(time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("NextDayStart = %v", got)
	}
	if got := DayAfterNextStart(now); !got.Equal(time.Date(2026, time.March, 16, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("DayAfterNextStart = %v", got)
	}
	if got := WeekAheadStart(now); !got.Equal(time.Date(2026, time.March, 22, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("WeekAheadStart = %v", got)
	}
}

func TestDayStartCrossesMonth(t *testing.T) {
	now := time.Date(2026, time.January, 31, 23, 59, 0, 0, time.UTC)
	if got := NextDayStart(now); got.Month() != time.February || got.Day() != 1 {
		t.Fatalf("NextDayStart = %v", got)
	}
}
