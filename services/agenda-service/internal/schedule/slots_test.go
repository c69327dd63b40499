package schedule

import (
	"testing"
	"time"
)

func TestSlotStarts_HourlyWeekday(t *testing.T) {
	p := testPolicy(t)

	got := p.SlotStarts(time.Monday, 60)
	want := []int{9 * 60, 10 * 60, 11 * 60, 12 * 60, 14 * 60, 15 * 60, 16 * 60, 17 * 60}
	if len(got) != len(want) {
		t.Fatalf("expected %d starts, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("start[%d]: expected %s, got %s", i, FormatMinutes(want[i]), FormatMinutes(got[i]))
		}
	}
}

func TestSlotStarts_LongDurationTrimsIntervalTail(t *testing.T) {
	p := testPolicy(t)

	// A 90 minute appointment cannot start at 12:00 (would end 13:30, inside
	// lunch) nor at 17:00 (would end 18:30, past closing).
	got := p.SlotStarts(time.Monday, 90)
	want := []int{9 * 60, 10 * 60, 11 * 60, 14 * 60, 15 * 60, 16 * 60}
	if len(got) != len(want) {
		t.Fatalf("expected %d starts, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("start[%d]: expected %s, got %s", i, FormatMinutes(want[i]), FormatMinutes(got[i]))
		}
	}
}

func TestSlotStarts_DurationLongerThanAnyInterval(t *testing.T) {
	p := testPolicy(t)

	if got := p.SlotStarts(time.Monday, 5*60); got != nil {
		t.Fatalf("expected no starts for a 5h appointment, got %v", got)
	}
}

func TestSlotStarts_NonWorkingDayEmpty(t *testing.T) {
	p := testPolicy(t)

	if got := p.SlotStarts(time.Saturday, 60); got != nil {
		t.Fatalf("expected no starts on Saturday, got %v", got)
	}
}

func TestSlotStarts_NonPositiveDuration(t *testing.T) {
	p := testPolicy(t)

	if got := p.SlotStarts(time.Monday, 0); got != nil {
		t.Fatalf("expected no starts for zero duration, got %v", got)
	}
}
