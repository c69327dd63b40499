package schedule

import (
	"testing"
	"time"
)

func testPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := LoadPolicy(PolicyConfig{
		Intervals:       "09:00-13:00,14:00-18:00",
		WorkDays:        "1-5",
		StepMinutes:     60,
		DefaultDuration: 60,
		Cutoff:          "inclusive",
		Timezone:        "Europe/Lisbon",
	})
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	return p
}

func TestLoadPolicy_ParsesIntervals(t *testing.T) {
	p := testPolicy(t)

	ivs := p.Intervals(time.Wednesday)
	if len(ivs) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(ivs))
	}
	if ivs[0].StartMinute != 9*60 || ivs[0].EndMinute != 13*60 {
		t.Fatalf("unexpected morning interval: %+v", ivs[0])
	}
	if ivs[1].StartMinute != 14*60 || ivs[1].EndMinute != 18*60 {
		t.Fatalf("unexpected afternoon interval: %+v", ivs[1])
	}
}

func TestLoadPolicy_WeekendNotWorking(t *testing.T) {
	p := testPolicy(t)

	if p.IsWorkingDay(time.Saturday) || p.IsWorkingDay(time.Sunday) {
		t.Fatalf("weekend should not be a working day")
	}
	if got := p.Intervals(time.Sunday); got != nil {
		t.Fatalf("expected no intervals on Sunday, got %v", got)
	}
}

func TestLoadPolicy_RejectsOverlappingIntervals(t *testing.T) {
	_, err := LoadPolicy(PolicyConfig{
		Intervals:       "09:00-14:00,13:00-18:00",
		WorkDays:        "1-5",
		StepMinutes:     60,
		DefaultDuration: 60,
		Timezone:        "UTC",
	})
	if err == nil {
		t.Fatalf("expected error for overlapping intervals")
	}
}

func TestLoadPolicy_RejectsBadCutoff(t *testing.T) {
	_, err := LoadPolicy(PolicyConfig{
		Intervals:       "09:00-13:00",
		WorkDays:        "1-5",
		StepMinutes:     60,
		DefaultDuration: 60,
		Cutoff:          "lenient",
		Timezone:        "UTC",
	})
	if err == nil {
		t.Fatalf("expected error for unknown cutoff mode")
	}
}

func TestFits(t *testing.T) {
	p := testPolicy(t)

	cases := []struct {
		name     string
		start    int
		duration int
		want     bool
	}{
		{"first morning slot", 9 * 60, 60, true},
		{"last afternoon slot", 17 * 60, 60, true},
		{"straddles lunch", 12*60 + 30, 60, false},
		{"inside lunch", 13 * 60, 30, false},
		{"off grid", 9*60 + 30, 30, false},
		{"runs past closing", 17*60 + 0, 90, false},
		{"zero duration", 9 * 60, 0, false},
	}
	for _, tc := range cases {
		if got := p.Fits(time.Tuesday, tc.start, tc.duration); got != tc.want {
			t.Fatalf("%s: Fits(%d, %d) = %v, want %v", tc.name, tc.start, tc.duration, got, tc.want)
		}
	}

	if p.Fits(time.Saturday, 9*60, 60) {
		t.Fatalf("nothing fits on a non-working day")
	}
}

func TestParseClockAndFormatMinutes(t *testing.T) {
	m, err := ParseClock("14:30")
	if err != nil {
		t.Fatalf("parse clock: %v", err)
	}
	if m != 14*60+30 {
		t.Fatalf("expected 870, got %d", m)
	}
	if got := FormatMinutes(9 * 60); got != "09:00" {
		t.Fatalf("expected 09:00, got %q", got)
	}
	if _, err := ParseClock("25:00"); err == nil {
		t.Fatalf("expected error for hour out of range")
	}
}
