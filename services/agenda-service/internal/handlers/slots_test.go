package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/availability"
	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/schedule"
)

type fakeResolver struct {
	slots []string
	err   error
	got   availability.Request
}

func (f *fakeResolver) Resolve(_ context.Context, req availability.Request) ([]string, error) {
	f.got = req
	return f.slots, f.err
}

func newSlotsHandler(t *testing.T, r slotResolver) *SlotsHandler {
	t.Helper()
	p, err := schedule.LoadPolicy(schedule.PolicyConfig{
		Intervals:       "09:00-13:00,14:00-18:00",
		WorkDays:        "1-5",
		StepMinutes:     60,
		DefaultDuration: 60,
		Timezone:        "UTC",
	})
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	return NewSlotsHandler(r, p, slog.New(slog.DiscardHandler))
}

func TestSlots_ReturnsResolvedList(t *testing.T) {
	resolver := &fakeResolver{slots: []string{"09:00", "11:00"}}
	h := newSlotsHandler(t, resolver)

	req := httptest.NewRequest("GET", "/api/v1/agenda/slots?provider=dr-campos&data=2026-09-02&duracao=90&is_online=1&ignorar_id=appt-7", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var got []string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(got) != 2 || got[0] != "09:00" {
		t.Fatalf("unexpected body: %v", got)
	}
	if resolver.got.DurationMinutes != 90 {
		t.Fatalf("expected duracao 90, got %d", resolver.got.DurationMinutes)
	}
	if !resolver.got.Online {
		t.Fatalf("is_online=1 should carry through")
	}
	if resolver.got.IgnoreID != "appt-7" {
		t.Fatalf("expected ignorar_id appt-7, got %q", resolver.got.IgnoreID)
	}
}

func TestSlots_DefaultsDuration(t *testing.T) {
	resolver := &fakeResolver{slots: []string{}}
	h := newSlotsHandler(t, resolver)

	req := httptest.NewRequest("GET", "/api/v1/agenda/slots?provider=dr-campos&data=2026-09-02", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resolver.got.DurationMinutes != 60 {
		t.Fatalf("expected default duration 60, got %d", resolver.got.DurationMinutes)
	}
}

func TestSlots_BadParams(t *testing.T) {
	h := newSlotsHandler(t, &fakeResolver{})

	cases := []string{
		"/api/v1/agenda/slots?data=2026-09-02",                            // missing provider
		"/api/v1/agenda/slots?provider=dr-campos",                         // missing data
		"/api/v1/agenda/slots?provider=dr-campos&data=02-09-2026",         // bad date
		"/api/v1/agenda/slots?provider=dr-campos&data=2026-09-02&duracao=0",
		"/api/v1/agenda/slots?provider=dr-campos&data=2026-09-02&duracao=abc",
	}
	for _, url := range cases {
		rec := httptest.NewRecorder()
		h.Slots(rec, httptest.NewRequest("GET", url, nil))
		if rec.Code != 400 {
			t.Fatalf("%s: expected 400, got %d", url, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
			t.Fatalf("%s: expected json error body, got %s", url, rec.Body.String())
		}
	}
}

func TestSlots_UnknownProviderIsEmptyList(t *testing.T) {
	resolver := &fakeResolver{err: &availability.NotFoundError{Resource: "provider", ID: "ghost"}}
	h := newSlotsHandler(t, resolver)

	req := httptest.NewRequest("GET", "/api/v1/agenda/slots?provider=ghost&data=2026-09-02", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty list, got %q", body)
	}
}

func TestSlots_UpstreamFailureIs503(t *testing.T) {
	resolver := &fakeResolver{err: &availability.UpstreamError{Op: "list bookings", Err: errors.New("down")}}
	h := newSlotsHandler(t, resolver)

	req := httptest.NewRequest("GET", "/api/v1/agenda/slots?provider=dr-campos&data=2026-09-02", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != 503 {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestSlots_MethodNotAllowed(t *testing.T) {
	h := newSlotsHandler(t, &fakeResolver{})

	rec := httptest.NewRecorder()
	h.Slots(rec, httptest.NewRequest("POST", "/api/v1/agenda/slots", nil))
	if rec.Code != 405 {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
