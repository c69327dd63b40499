package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/model"
	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/schedule"
	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/storage"
)

type appointmentReader interface {
	ListBetween(ctx context.Context, from, to time.Time, providerID string) ([]model.Appointment, error)
	CountOnDay(ctx context.Context, day time.Time) (storage.DayCounts, error)
	Upcoming(ctx context.Context, from time.Time, limit int) ([]model.Appointment, error)
}

type providerLister interface {
	ListActive(ctx context.Context) ([]model.Provider, error)
	Get(ctx context.Context, id string) (model.Provider, error)
}

// AgendaHandler serves the read-only views: the calendar event feed, the
// providers dropdown and the reception dashboard.
type AgendaHandler struct {
	reader    appointmentReader
	providers providerLister
	policy    *schedule.Policy
	logger    *slog.Logger
	now       func() time.Time
}

func NewAgendaHandler(reader appointmentReader, providers providerLister, policy *schedule.Policy, logger *slog.Logger) *AgendaHandler {
	return &AgendaHandler{
		reader:    reader,
		providers: providers,
		policy:    policy,
		logger:    logger,
		now:       time.Now,
	}
}

type eventItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Provider string `json:"provider"`
	IsOnline bool   `json:"is_online"`
	Estado   string `json:"estado"`
}

type providerItem struct {
	ID        string `json:"id"`
	Nome      string `json:"nome"`
	Specialty string `json:"especialidade,omitempty"`
}

type dashboardResponse struct {
	ConsultasHoje dashboardCounts `json:"consultas_hoje"`
	Proximas      []upcomingItem  `json:"proximas"`
}

type dashboardCounts struct {
	Total      int `json:"total"`
	Online     int `json:"online"`
	Presencial int `json:"presencial"`
}

type upcomingItem struct {
	ID       string `json:"id"`
	Paciente string `json:"paciente"`
	Provider string `json:"provider"`
	Data     string `json:"data"`
	Hora     string `json:"hora"`
	IsOnline bool   `json:"is_online"`
}

// Events handles GET /api/v1/agenda/events?start=&end=&provider=, the feed
// the calendar widget renders. start is inclusive, end exclusive.
func (h *AgendaHandler) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	from, err := h.policy.ParseDay(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return
	}
	to, err := h.policy.ParseDay(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return
	}
	if !to.After(from) {
		writeError(w, http.StatusBadRequest, "end must be after start")
		return
	}

	appts, err := h.reader.ListBetween(r.Context(), from, to, strings.TrimSpace(q.Get("provider")))
	if err != nil {
		h.logger.Error("event feed query failed", "err", err)
		writeError(w, http.StatusServiceUnavailable, "agenda temporarily unavailable")
		return
	}

	events := make([]eventItem, 0, len(appts))
	for _, appt := range appts {
		events = append(events, eventItem{
			ID:       appt.ID,
			Title:    appt.PatientName,
			Start:    localStamp(appt.Day, appt.StartMinute),
			End:      localStamp(appt.Day, appt.EndMinute()),
			Provider: appt.ProviderID,
			IsOnline: appt.IsOnline,
			Estado:   appt.Status,
		})
	}
	writeJSON(w, http.StatusOK, events)
}

// Providers handles GET /api/v1/agenda/providers, the dropdown source.
func (h *AgendaHandler) Providers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	providers, err := h.providers.ListActive(r.Context())
	if err != nil {
		h.logger.Error("provider list failed", "err", err)
		writeError(w, http.StatusServiceUnavailable, "agenda temporarily unavailable")
		return
	}
	items := make([]providerItem, 0, len(providers))
	for _, p := range providers {
		items = append(items, providerItem{ID: p.ID, Nome: p.Name, Specialty: p.Specialty})
	}
	writeJSON(w, http.StatusOK, items)
}

// Dashboard handles GET /api/v1/agenda/dashboard: today's counts by channel
// plus the next scheduled appointments.
func (h *AgendaHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx := r.Context()
	today := h.policy.Today(h.now())

	counts, err := h.reader.CountOnDay(ctx, today)
	if err != nil {
		h.logger.Error("dashboard counts failed", "err", err)
		writeError(w, http.StatusServiceUnavailable, "agenda temporarily unavailable")
		return
	}

	upcoming, err := h.reader.Upcoming(ctx, today, 5)
	if err != nil {
		h.logger.Error("dashboard upcoming failed", "err", err)
		writeError(w, http.StatusServiceUnavailable, "agenda temporarily unavailable")
		return
	}

	items := make([]upcomingItem, 0, len(upcoming))
	for _, appt := range upcoming {
		items = append(items, upcomingItem{
			ID:       appt.ID,
			Paciente: appt.PatientName,
			Provider: appt.ProviderID,
			Data:     appt.Day.Format("2006-01-02"),
			Hora:     schedule.FormatMinutes(appt.StartMinute),
			IsOnline: appt.IsOnline,
		})
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		ConsultasHoje: dashboardCounts{
			Total:      counts.Total,
			Online:     counts.Online,
			Presencial: counts.Presencial,
		},
		Proximas: items,
	})
}

func localStamp(day time.Time, minute int) string {
	return day.Add(time.Duration(minute) * time.Minute).Format("2006-01-02T15:04")
}
