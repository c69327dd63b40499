package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CutoffMode selects how "already past" starts are filtered when resolving
// slots for the current day. Deployed front-ends disagreed on strict vs
// inclusive comparison against now, so it is a named policy knob.
type CutoffMode int

const (
	// CutoffInclusive drops a slot whose start is at or before the current
	// minute: a slot exactly at now counts as already missed.
	CutoffInclusive CutoffMode = iota
	// CutoffExclusive keeps a slot whose start equals the current minute.
	CutoffExclusive
)

// WorkInterval is a contiguous bookable range on a weekday, in minutes from
// midnight, half-open [StartMinute, EndMinute).
type WorkInterval struct {
	StartMinute int
	EndMinute   int
}

// Policy is the clinic calendar: which weekdays are working days, the work
// intervals within a working day (the gap between them is the lunch break and
// is never bookable), the slot step, and the past-cutoff rule. Immutable
// after Load.
type Policy struct {
	workDays        map[time.Weekday]bool
	intervals       []WorkInterval
	StepMinutes     int
	DefaultDuration int
	Cutoff          CutoffMode
	Location        *time.Location
}

type PolicyConfig struct {
	Intervals       string // e.g. "09:00-13:00,14:00-18:00"
	WorkDays        string // e.g. "1-5" (Monday..Friday) or "1,2,3,4,5"
	StepMinutes     int
	DefaultDuration int
	Cutoff          string // "inclusive" | "exclusive"
	Timezone        string
}

func LoadPolicy(cfg PolicyConfig) (*Policy, error) {
	if cfg.StepMinutes <= 0 {
		return nil, fmt.Errorf("slot step must be positive (got %d)", cfg.StepMinutes)
	}
	if cfg.DefaultDuration <= 0 {
		return nil, fmt.Errorf("default duration must be positive (got %d)", cfg.DefaultDuration)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	intervals, err := parseIntervals(cfg.Intervals)
	if err != nil {
		return nil, err
	}

	days, err := parseWorkDays(cfg.WorkDays)
	if err != nil {
		return nil, err
	}

	var cutoff CutoffMode
	switch strings.ToLower(strings.TrimSpace(cfg.Cutoff)) {
	case "", "inclusive":
		cutoff = CutoffInclusive
	case "exclusive":
		cutoff = CutoffExclusive
	default:
		return nil, fmt.Errorf("invalid past cutoff mode %q", cfg.Cutoff)
	}

	return &Policy{
		workDays:        days,
		intervals:       intervals,
		StepMinutes:     cfg.StepMinutes,
		DefaultDuration: cfg.DefaultDuration,
		Cutoff:          cutoff,
		Location:        loc,
	}, nil
}

func (p *Policy) IsWorkingDay(wd time.Weekday) bool {
	return p.workDays[wd]
}

// Intervals returns the work intervals for a weekday, ascending. Empty for
// non-working days.
func (p *Policy) Intervals(wd time.Weekday) []WorkInterval {
	if !p.workDays[wd] {
		return nil
	}
	return p.intervals
}

// Fits reports whether a booking [startMinute, startMinute+duration) lies
// entirely within a single work interval of the weekday and starts on the
// slot grid. A booking may not straddle the lunch gap even when the
// arithmetic end would land inside the afternoon block.
func (p *Policy) Fits(wd time.Weekday, startMinute, durationMinutes int) bool {
	if durationMinutes <= 0 {
		return false
	}
	for _, iv := range p.Intervals(wd) {
		if startMinute < iv.StartMinute || startMinute+durationMinutes > iv.EndMinute {
			continue
		}
		if (startMinute-iv.StartMinute)%p.StepMinutes != 0 {
			return false
		}
		return true
	}
	return false
}

// Today returns midnight of the current day in the policy location.
func (p *Policy) Today(now time.Time) time.Time {
	n := now.In(p.Location)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, p.Location)
}

// ParseDay parses an ISO calendar date into midnight in the policy location.
func (p *Policy) ParseDay(s string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), p.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return day, nil
}

func parseIntervals(raw string) ([]WorkInterval, error) {
	var out []WorkInterval
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bounds := strings.SplitN(part, "-", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("invalid work interval %q", part)
		}
		start, err := ParseClock(bounds[0])
		if err != nil {
			return nil, err
		}
		end, err := ParseClock(bounds[1])
		if err != nil {
			return nil, err
		}
		if end <= start {
			return nil, fmt.Errorf("work interval %q must end after it starts", part)
		}
		out = append(out, WorkInterval{StartMinute: start, EndMinute: end})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no work intervals configured")
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartMinute < out[j].StartMinute })
	for i := 1; i < len(out); i++ {
		if out[i].StartMinute < out[i-1].EndMinute {
			return nil, fmt.Errorf("work intervals overlap at %s", FormatMinutes(out[i].StartMinute))
		}
	}
	return out, nil
}

func parseWorkDays(raw string) (map[time.Weekday]bool, error) {
	days := map[time.Weekday]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if from, to, ok := strings.Cut(part, "-"); ok {
			lo, err1 := strconv.Atoi(strings.TrimSpace(from))
			hi, err2 := strconv.Atoi(strings.TrimSpace(to))
			if err1 != nil || err2 != nil || lo < 0 || hi > 6 || lo > hi {
				return nil, fmt.Errorf("invalid weekday range %q", part)
			}
			for d := lo; d <= hi; d++ {
				days[time.Weekday(d)] = true
			}
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil || d < 0 || d > 6 {
			return nil, fmt.Errorf("invalid weekday %q", part)
		}
		days[time.Weekday(d)] = true
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no working days configured")
	}
	return days, nil
}

// ParseClock parses "HH:MM" into minutes from midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h*60 + m, nil
}

// FormatMinutes renders minutes from midnight as zero-padded "HH:MM".
func FormatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
