package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/availability"
	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/schedule"
)

type slotResolver interface {
	Resolve(ctx context.Context, req availability.Request) ([]string, error)
}

// SlotsHandler serves the free-slots query used by the booking form. The
// result is advisory; the write path re-validates.
type SlotsHandler struct {
	resolver slotResolver
	policy   *schedule.Policy
	logger   *slog.Logger
}

func NewSlotsHandler(resolver slotResolver, policy *schedule.Policy, logger *slog.Logger) *SlotsHandler {
	return &SlotsHandler{resolver: resolver, policy: policy, logger: logger}
}

// Slots handles GET /api/v1/agenda/slots?provider=&data=&duracao=&is_online=&ignorar_id=.
// duracao defaults to the policy's standard appointment length. An unknown
// provider answers 200 with an empty list so the form simply shows no times.
func (h *SlotsHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()

	provider := strings.TrimSpace(q.Get("provider"))
	if provider == "" {
		writeError(w, http.StatusBadRequest, "provider is required")
		return
	}

	rawDay := strings.TrimSpace(q.Get("data"))
	if rawDay == "" {
		writeError(w, http.StatusBadRequest, "data is required")
		return
	}
	day, err := h.policy.ParseDay(rawDay)
	if err != nil {
		writeError(w, http.StatusBadRequest, "data must be YYYY-MM-DD")
		return
	}

	duration := h.policy.DefaultDuration
	if raw := strings.TrimSpace(q.Get("duracao")); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil || duration <= 0 {
			writeError(w, http.StatusBadRequest, "duracao must be a positive number of minutes")
			return
		}
	}

	req := availability.Request{
		ProviderID:      provider,
		Day:             day,
		DurationMinutes: duration,
		Online:          isTrue(q.Get("is_online")),
		IgnoreID:        strings.TrimSpace(q.Get("ignorar_id")),
	}

	slots, err := h.resolver.Resolve(r.Context(), req)
	if err != nil {
		var nf *availability.NotFoundError
		var ve *availability.ValidationError
		switch {
		case errors.As(err, &nf):
			writeJSON(w, http.StatusOK, []string{})
		case errors.As(err, &ve):
			writeError(w, http.StatusBadRequest, ve.Error())
		default:
			h.logger.Error("slot resolve failed", "provider", provider, "day", rawDay, "err", err)
			writeError(w, http.StatusServiceUnavailable, "agenda temporarily unavailable")
		}
		return
	}

	writeJSON(w, http.StatusOK, slots)
}

func isTrue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "sim":
		return true
	}
	return false
}
