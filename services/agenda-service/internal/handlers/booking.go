package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/availability"
	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/model"
	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/outbox"
	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/schedule"
	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/storage"
)

// BookingHandler owns the appointment write path: create, reschedule,
// cancel. Every write runs in one transaction that takes the provider/day
// lock, re-validates the slot, mutates the row, and records the outbox
// event, so a successful response implies a conflict-free committed booking.
type BookingHandler struct {
	repo      *storage.AppointmentRepository
	providers *storage.ProviderRepository
	outbox    *outbox.Repository
	policy    *schedule.Policy
	logger    *slog.Logger
}

func NewBookingHandler(repo *storage.AppointmentRepository, providers *storage.ProviderRepository, outboxRepo *outbox.Repository, policy *schedule.Policy, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		repo:      repo,
		providers: providers,
		outbox:    outboxRepo,
		policy:    policy,
		logger:    logger,
	}
}

type createAppointmentRequest struct {
	Provider     string `json:"provider"`
	Data         string `json:"data"`
	Hora         string `json:"hora"`
	Duracao      int    `json:"duracao"`
	IsOnline     bool   `json:"is_online"`
	PacienteNIF  string `json:"paciente_nif"`
	PacienteNome string `json:"paciente_nome"`
}

type appointmentResponse struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Data     string `json:"data"`
	Hora     string `json:"hora"`
	Fim      string `json:"fim"`
	Duracao  int    `json:"duracao"`
	IsOnline bool   `json:"is_online"`
	Estado   string `json:"estado"`
}

type rescheduleRequest struct {
	Data    string `json:"data"`
	Hora    string `json:"hora"`
	Duracao int    `json:"duracao"`
}

type cancelRequest struct {
	Motivo string `json:"motivo"`
}

// Create handles POST /api/v1/agenda/appointments.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	req.Provider = strings.TrimSpace(req.Provider)
	req.PacienteNIF = strings.TrimSpace(req.PacienteNIF)
	req.PacienteNome = strings.TrimSpace(req.PacienteNome)
	if req.Provider == "" || req.PacienteNIF == "" || req.PacienteNome == "" {
		writeError(w, http.StatusBadRequest, "provider, paciente_nif and paciente_nome are required")
		return
	}

	day, startMinute, duration, ok := h.parseSlot(w, req.Data, req.Hora, req.Duracao)
	if !ok {
		return
	}

	ctx := r.Context()
	exists, err := h.providers.ProviderExists(ctx, req.Provider)
	if err != nil {
		h.logger.Error("provider lookup failed", "provider", req.Provider, "err", err)
		writeError(w, http.StatusServiceUnavailable, "agenda temporarily unavailable")
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "provider not found")
		return
	}

	appt := &model.Appointment{
		ProviderID:      req.Provider,
		PatientNIF:      req.PacienteNIF,
		PatientName:     req.PacienteNome,
		Day:             day,
		StartMinute:     startMinute,
		DurationMinutes: duration,
		IsOnline:        req.IsOnline,
		Status:          model.StatusScheduled,
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.repo.Create(ctx, tx, appt)
	if err != nil {
		if errors.Is(err, availability.ErrSlotConflict) {
			writeError(w, http.StatusConflict, "slot already taken")
			return
		}
		h.logger.Error("appointment create failed", "provider", req.Provider, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create appointment")
		return
	}
	appt.ID = id

	if err := h.insertEvent(ctx, tx, outbox.EventAppointmentBooked, appt); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record event")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	h.logger.Info("appointment booked",
		"appointment_id", id,
		"provider", appt.ProviderID,
		"day", appt.Day.Format("2006-01-02"),
		"start", schedule.FormatMinutes(appt.StartMinute))
	writeJSON(w, http.StatusCreated, toResponse(*appt))
}

// Reschedule handles POST /api/v1/agenda/appointments/{id}/reschedule. The
// appointment's own slot does not count as a conflict, so moving within the
// same day always works when the target is otherwise free.
func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "appointment id is required")
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	day, startMinute, duration, ok := h.parseSlot(w, req.Data, req.Hora, req.Duracao)
	if !ok {
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.Reschedule(ctx, tx, id, day, startMinute, duration)
	if err != nil {
		switch {
		case errors.Is(err, availability.ErrSlotConflict):
			writeError(w, http.StatusConflict, "slot already taken")
		case storage.IsNotFound(err):
			writeError(w, http.StatusNotFound, "appointment not found")
		default:
			h.logger.Error("reschedule failed", "appointment_id", id, "err", err)
			writeError(w, http.StatusInternalServerError, "failed to reschedule appointment")
		}
		return
	}

	if err := h.insertEvent(ctx, tx, outbox.EventAppointmentRescheduled, &appt); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record event")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(appt))
}

// Cancel handles POST /api/v1/agenda/appointments/{id}/cancel. Cancelling
// frees the slot immediately.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "appointment id is required")
		return
	}

	var req cancelRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	if appt.Status != model.StatusScheduled {
		writeError(w, http.StatusConflict, "appointment is not scheduled")
		return
	}

	cancelledAt, err := h.repo.Cancel(ctx, tx, id, strings.TrimSpace(req.Motivo))
	if err != nil {
		h.logger.Error("cancel failed", "appointment_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to cancel appointment")
		return
	}
	appt.Status = model.StatusCancelled
	appt.CancelledAt = &cancelledAt

	if err := h.insertEvent(ctx, tx, outbox.EventAppointmentCancelled, &appt); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record event")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":           id,
		"estado":       model.StatusCancelled,
		"cancelled_at": cancelledAt.UTC().Format(time.RFC3339),
	})
}

// Detail handles GET /api/v1/agenda/appointments/{id}.
func (h *BookingHandler) Detail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := r.PathValue("id")
	appt, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return
		}
		h.logger.Error("appointment fetch failed", "appointment_id", id, "err", err)
		writeError(w, http.StatusServiceUnavailable, "agenda temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

// parseSlot validates the slot fields shared by create and reschedule. A
// slot must start on the policy grid and fit entirely inside one work
// interval of a working day; bookings in the past are rejected outright.
func (h *BookingHandler) parseSlot(w http.ResponseWriter, rawDay, rawHora string, duration int) (time.Time, int, int, bool) {
	day, err := h.policy.ParseDay(rawDay)
	if err != nil {
		writeError(w, http.StatusBadRequest, "data must be YYYY-MM-DD")
		return time.Time{}, 0, 0, false
	}
	startMinute, err := schedule.ParseClock(rawHora)
	if err != nil {
		writeError(w, http.StatusBadRequest, "hora must be HH:MM")
		return time.Time{}, 0, 0, false
	}
	if duration == 0 {
		duration = h.policy.DefaultDuration
	}
	if duration < 0 {
		writeError(w, http.StatusBadRequest, "duracao must be a positive number of minutes")
		return time.Time{}, 0, 0, false
	}
	if !h.policy.Fits(day.Weekday(), startMinute, duration) {
		writeError(w, http.StatusUnprocessableEntity, "requested time is outside clinic hours")
		return time.Time{}, 0, 0, false
	}
	if day.Before(h.policy.Today(time.Now())) {
		writeError(w, http.StatusUnprocessableEntity, "cannot book in the past")
		return time.Time{}, 0, 0, false
	}
	return day, startMinute, duration, true
}

func (h *BookingHandler) insertEvent(ctx context.Context, tx pgx.Tx, eventType string, appt *model.Appointment) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"provider":       appt.ProviderID,
		"paciente_nif":   appt.PatientNIF,
		"paciente_nome":  appt.PatientName,
		"data":           appt.Day.Format("2006-01-02"),
		"hora":           schedule.FormatMinutes(appt.StartMinute),
		"duracao":        appt.DurationMinutes,
		"is_online":      appt.IsOnline,
		"estado":         appt.Status,
	})
	if err != nil {
		return err
	}
	return h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}

func toResponse(appt model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:       appt.ID,
		Provider: appt.ProviderID,
		Data:     appt.Day.Format("2006-01-02"),
		Hora:     schedule.FormatMinutes(appt.StartMinute),
		Fim:      schedule.FormatMinutes(appt.EndMinute()),
		Duracao:  appt.DurationMinutes,
		IsOnline: appt.IsOnline,
		Estado:   appt.Status,
	}
}
