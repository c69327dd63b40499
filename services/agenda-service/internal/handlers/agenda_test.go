package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/model"
	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/schedule"
	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/storage"
)

type fakeReader struct {
	appts    []model.Appointment
	counts   storage.DayCounts
	upcoming []model.Appointment
	gotFrom  time.Time
	gotTo    time.Time
}

func (f *fakeReader) ListBetween(_ context.Context, from, to time.Time, _ string) ([]model.Appointment, error) {
	f.gotFrom, f.gotTo = from, to
	return f.appts, nil
}

func (f *fakeReader) CountOnDay(context.Context, time.Time) (storage.DayCounts, error) {
	return f.counts, nil
}

func (f *fakeReader) Upcoming(context.Context, time.Time, int) ([]model.Appointment, error) {
	return f.upcoming, nil
}

type fakeLister struct {
	providers []model.Provider
}

func (f *fakeLister) ListActive(context.Context) ([]model.Provider, error) {
	return f.providers, nil
}

func (f *fakeLister) Get(context.Context, string) (model.Provider, error) {
	return model.Provider{}, nil
}

func newAgendaHandler(t *testing.T, reader *fakeReader, lister *fakeLister) *AgendaHandler {
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
	return NewAgendaHandler(reader, lister, p, slog.New(slog.DiscardHandler))
}

func TestEvents_RendersCalendarFeed(t *testing.T) {
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	reader := &fakeReader{appts: []model.Appointment{{
		ID:              "appt-1",
		ProviderID:      "dr-campos",
		PatientName:     "Maria Silva",
		Day:             day,
		StartMinute:     10 * 60,
		DurationMinutes: 60,
		IsOnline:        true,
		Status:          model.StatusScheduled,
	}}}
	h := newAgendaHandler(t, reader, &fakeLister{})

	req := httptest.NewRequest("GET", "/api/v1/agenda/events?start=2026-09-01&end=2026-09-08", nil)
	rec := httptest.NewRecorder()
	h.Events(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var events []eventItem
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Start != "2026-09-02T10:00" || events[0].End != "2026-09-02T11:00" {
		t.Fatalf("unexpected event bounds: %+v", events[0])
	}
	if events[0].Title != "Maria Silva" || !events[0].IsOnline {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestEvents_RejectsInvertedRange(t *testing.T) {
	h := newAgendaHandler(t, &fakeReader{}, &fakeLister{})

	req := httptest.NewRequest("GET", "/api/v1/agenda/events?start=2026-09-08&end=2026-09-01", nil)
	rec := httptest.NewRecorder()
	h.Events(rec, req)

	if rec.Code != 400 {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestProviders_ListsDropdown(t *testing.T) {
	lister := &fakeLister{providers: []model.Provider{
		{ID: "p1", Name: "Dra. Ana Campos", Specialty: "psicologia clinica", Active: true},
		{ID: "p2", Name: "Dr. Rui Matos", Active: true},
	}}
	h := newAgendaHandler(t, &fakeReader{}, lister)

	rec := httptest.NewRecorder()
	h.Providers(rec, httptest.NewRequest("GET", "/api/v1/agenda/providers", nil))

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var items []providerItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 2 || items[0].Nome != "Dra. Ana Campos" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestDashboard_CountsAndUpcoming(t *testing.T) {
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	reader := &fakeReader{
		counts: storage.DayCounts{Total: 7, Online: 3, Presencial: 4},
		upcoming: []model.Appointment{{
			ID:          "appt-9",
			ProviderID:  "dr-campos",
			PatientName: "Joao Pereira",
			Day:         day,
			StartMinute: 14 * 60,
		}},
	}
	h := newAgendaHandler(t, reader, &fakeLister{})
	h.now = func() time.Time { return day.Add(8 * time.Hour) }

	rec := httptest.NewRecorder()
	h.Dashboard(rec, httptest.NewRequest("GET", "/api/v1/agenda/dashboard", nil))

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp dashboardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ConsultasHoje.Total != 7 || resp.ConsultasHoje.Online != 3 || resp.ConsultasHoje.Presencial != 4 {
		t.Fatalf("unexpected counts: %+v", resp.ConsultasHoje)
	}
	if len(resp.Proximas) != 1 || resp.Proximas[0].Hora != "14:00" {
		t.Fatalf("unexpected upcoming: %+v", resp.Proximas)
	}
}
