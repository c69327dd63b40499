package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/schedule"
)

type fakeSource struct {
	busy      []Busy
	err       error
	gotDay    time.Time
	gotExcl   string
	listCalls int
}

func (f *fakeSource) ListScheduled(_ context.Context, _ string, day time.Time, excludeID string) ([]Busy, error) {
	f.listCalls++
	f.gotDay = day
	f.gotExcl = excludeID
	return f.busy, f.err
}

type fakeDirectory struct {
	exists bool
	err    error
}

func (f *fakeDirectory) ProviderExists(context.Context, string) (bool, error) {
	return f.exists, f.err
}

func newTestResolver(t *testing.T, cutoff string, src BookingSource, dir Directory) *Resolver {
	t.Helper()
	p, err := schedule.LoadPolicy(schedule.PolicyConfig{
		Intervals:       "09:00-13:00,14:00-18:00",
		WorkDays:        "1-5",
		StepMinutes:     60,
		DefaultDuration: 60,
		Cutoff:          cutoff,
		Timezone:        "UTC",
	})
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	return NewResolver(p, src, dir)
}

// 2026-09-02 is a Wednesday.
var wednesday = time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

func TestResolve_FutureDayMinusBusy(t *testing.T) {
	src := &fakeSource{busy: []Busy{
		{StartMinute: 10 * 60, EndMinute: 11 * 60},
		{StartMinute: 15 * 60, EndMinute: 16 * 60},
	}}
	r := newTestResolver(t, "inclusive", src, &fakeDirectory{exists: true})
	r.now = func() time.Time { return wednesday.AddDate(0, 0, -7) }

	got, err := r.Resolve(context.Background(), Request{
		ProviderID: "dr-campos", Day: wednesday, DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := []string{"09:00", "11:00", "12:00", "14:00", "16:00", "17:00"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("slot[%d]: expected %s, got %s", i, want[i], got[i])
		}
	}
	if src.listCalls != 1 {
		t.Fatalf("expected a single booking snapshot, got %d reads", src.listCalls)
	}
}

func TestResolve_BackToBackNotAConflict(t *testing.T) {
	// Busy 10:00-11:00. A 60m slot at 09:00 ends exactly at the busy start
	// and a slot at 11:00 starts exactly at the busy end; both stay free.
	src := &fakeSource{busy: []Busy{{StartMinute: 10 * 60, EndMinute: 11 * 60}}}
	r := newTestResolver(t, "inclusive", src, &fakeDirectory{exists: true})
	r.now = func() time.Time { return wednesday.AddDate(0, 0, -1) }

	got, err := r.Resolve(context.Background(), Request{
		ProviderID: "dr-campos", Day: wednesday, DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	has := func(s string) bool {
		for _, g := range got {
			if g == s {
				return true
			}
		}
		return false
	}
	if !has("09:00") || !has("11:00") {
		t.Fatalf("expected 09:00 and 11:00 free, got %v", got)
	}
	if has("10:00") {
		t.Fatalf("10:00 should be blocked, got %v", got)
	}
}

func TestResolve_PartialOverlapBlocks(t *testing.T) {
	// Busy 10:30-11:30 blocks both the 10:00 and 11:00 hourly slots.
	src := &fakeSource{busy: []Busy{{StartMinute: 10*60 + 30, EndMinute: 11*60 + 30}}}
	r := newTestResolver(t, "inclusive", src, &fakeDirectory{exists: true})
	r.now = func() time.Time { return wednesday.AddDate(0, 0, -1) }

	got, err := r.Resolve(context.Background(), Request{
		ProviderID: "dr-campos", Day: wednesday, DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, s := range got {
		if s == "10:00" || s == "11:00" {
			t.Fatalf("%s overlaps busy 10:30-11:30, got %v", s, got)
		}
	}
}

func TestResolve_WeekendEmptyNotError(t *testing.T) {
	saturday := time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{}
	r := newTestResolver(t, "inclusive", src, &fakeDirectory{exists: true})
	r.now = func() time.Time { return wednesday }

	got, err := r.Resolve(context.Background(), Request{
		ProviderID: "dr-campos", Day: saturday, DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", got)
	}
	if src.listCalls != 0 {
		t.Fatalf("no candidates means no booking read, got %d reads", src.listCalls)
	}
}

func TestResolve_PastDayFullyCut(t *testing.T) {
	r := newTestResolver(t, "inclusive", &fakeSource{}, &fakeDirectory{exists: true})
	r.now = func() time.Time { return wednesday.AddDate(0, 0, 1) }

	got, err := r.Resolve(context.Background(), Request{
		ProviderID: "dr-campos", Day: wednesday, DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no slots on a past day, got %v", got)
	}
}

func TestResolve_TodayCutoffModes(t *testing.T) {
	// Now is exactly 15:00 on the requested day.
	now := time.Date(2026, 9, 2, 15, 0, 0, 0, time.UTC)

	incl := newTestResolver(t, "inclusive", &fakeSource{}, &fakeDirectory{exists: true})
	incl.now = func() time.Time { return now }
	got, err := incl.Resolve(context.Background(), Request{
		ProviderID: "dr-campos", Day: wednesday, DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("resolve inclusive: %v", err)
	}
	if len(got) != 2 || got[0] != "16:00" || got[1] != "17:00" {
		t.Fatalf("inclusive cutoff at 15:00 should drop the 15:00 slot, got %v", got)
	}

	excl := newTestResolver(t, "exclusive", &fakeSource{}, &fakeDirectory{exists: true})
	excl.now = func() time.Time { return now }
	got, err = excl.Resolve(context.Background(), Request{
		ProviderID: "dr-campos", Day: wednesday, DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("resolve exclusive: %v", err)
	}
	if len(got) != 3 || got[0] != "15:00" {
		t.Fatalf("exclusive cutoff at 15:00 should keep the 15:00 slot, got %v", got)
	}
}

func TestResolve_IgnoreIDReachesSource(t *testing.T) {
	src := &fakeSource{}
	r := newTestResolver(t, "inclusive", src, &fakeDirectory{exists: true})
	r.now = func() time.Time { return wednesday.AddDate(0, 0, -1) }

	_, err := r.Resolve(context.Background(), Request{
		ProviderID: "dr-campos", Day: wednesday, DurationMinutes: 60, IgnoreID: "appt-42",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if src.gotExcl != "appt-42" {
		t.Fatalf("expected excludeID appt-42 to reach the store, got %q", src.gotExcl)
	}
}

func TestResolve_UnknownProvider(t *testing.T) {
	r := newTestResolver(t, "inclusive", &fakeSource{}, &fakeDirectory{exists: false})

	_, err := r.Resolve(context.Background(), Request{
		ProviderID: "ghost", Day: wednesday, DurationMinutes: 60,
	})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestResolve_ValidationErrors(t *testing.T) {
	r := newTestResolver(t, "inclusive", &fakeSource{}, &fakeDirectory{exists: true})

	cases := []Request{
		{Day: wednesday, DurationMinutes: 60},                          // missing provider
		{ProviderID: "dr-campos", DurationMinutes: 60},                 // missing day
		{ProviderID: "dr-campos", Day: wednesday, DurationMinutes: 0},  // bad duration
		{ProviderID: "dr-campos", Day: wednesday, DurationMinutes: -5}, // bad duration
	}
	for i, req := range cases {
		_, err := r.Resolve(context.Background(), req)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("case %d: expected ValidationError, got %v", i, err)
		}
	}
}

func TestResolve_SourceFailureIsUpstream(t *testing.T) {
	src := &fakeSource{err: errors.New("connection reset")}
	r := newTestResolver(t, "inclusive", src, &fakeDirectory{exists: true})
	r.now = func() time.Time { return wednesday.AddDate(0, 0, -1) }

	_, err := r.Resolve(context.Background(), Request{
		ProviderID: "dr-campos", Day: wednesday, DurationMinutes: 60,
	})
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if !errors.Is(err, src.err) {
		t.Fatalf("UpstreamError should wrap the cause")
	}
}
