package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pedroo-goncalves/Projeto-FBD/services/patient-service/internal/model"
	"github.com/pedroo-goncalves/Projeto-FBD/services/patient-service/internal/storage"
)

type patientStore interface {
	Upsert(ctx context.Context, p *model.Patient) (model.Patient, bool, error)
	Search(ctx context.Context, query string, limit int) ([]model.Patient, error)
	GetByNIF(ctx context.Context, nif string) (model.Patient, error)
}

// PatientHandler serves the reception quick-add form and patient lookups.
type PatientHandler struct {
	store  patientStore
	logger *slog.Logger
}

func NewPatientHandler(store patientStore, logger *slog.Logger) *PatientHandler {
	return &PatientHandler{store: store, logger: logger}
}

type quickCreateRequest struct {
	NIF       string `json:"nif"`
	Nome      string `json:"nome"`
	Telemovel string `json:"telemovel"`
	DataNasc  string `json:"data_nasc"`
}

type patientResponse struct {
	ID        string `json:"id"`
	NIF       string `json:"nif"`
	Nome      string `json:"nome"`
	Telemovel string `json:"telemovel"`
	DataNasc  string `json:"data_nasc,omitempty"`
}

// Create handles POST /api/v1/patients, the quick-add used mid-booking.
// Re-submitting an existing NIF answers 200 with the stored record instead
// of failing, so a double click at the desk never loses the booking flow.
func (h *PatientHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req quickCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	req.NIF = strings.TrimSpace(req.NIF)
	req.Nome = strings.TrimSpace(req.Nome)
	req.Telemovel = strings.TrimSpace(req.Telemovel)

	if !ValidNIF(req.NIF) {
		writeError(w, http.StatusBadRequest, "nif must be 9 digits")
		return
	}
	if req.Nome == "" {
		writeError(w, http.StatusBadRequest, "nome is required")
		return
	}
	if req.Telemovel != "" && !ValidPhone(req.Telemovel) {
		writeError(w, http.StatusBadRequest, "telemovel must be 9 digits")
		return
	}

	var birth *time.Time
	if req.DataNasc != "" {
		d, err := time.Parse("2006-01-02", req.DataNasc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "data_nasc must be YYYY-MM-DD")
			return
		}
		birth = &d
	}

	patient := &model.Patient{
		NIF:       req.NIF,
		Name:      req.Nome,
		Phone:     req.Telemovel,
		BirthDate: birth,
	}
	stored, created, err := h.store.Upsert(r.Context(), patient)
	if err != nil {
		h.logger.Error("patient upsert failed", "nif", req.NIF, "err", err)
		writeError(w, http.StatusServiceUnavailable, "patients temporarily unavailable")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toResponse(stored))
}

// List handles GET /api/v1/patients?q=, matching name prefix or NIF.
func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	patients, err := h.store.Search(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")), 50)
	if err != nil {
		h.logger.Error("patient search failed", "err", err)
		writeError(w, http.StatusServiceUnavailable, "patients temporarily unavailable")
		return
	}

	items := make([]patientResponse, 0, len(patients))
	for _, p := range patients {
		items = append(items, toResponse(p))
	}
	writeJSON(w, http.StatusOK, items)
}

// Get handles GET /api/v1/patients/{nif}.
func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	nif := r.PathValue("nif")
	if !ValidNIF(nif) {
		writeError(w, http.StatusBadRequest, "nif must be 9 digits")
		return
	}

	patient, err := h.store.GetByNIF(r.Context(), nif)
	if err != nil {
		if errors.Is(err, storage.ErrPatientNotFound) {
			writeError(w, http.StatusNotFound, "patient not found")
			return
		}
		h.logger.Error("patient fetch failed", "nif", nif, "err", err)
		writeError(w, http.StatusServiceUnavailable, "patients temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(patient))
}

// ValidNIF accepts a Portuguese tax number: exactly 9 digits.
func ValidNIF(s string) bool {
	return allDigits(s, 9)
}

// ValidPhone accepts a Portuguese mobile/landline number: exactly 9 digits.
func ValidPhone(s string) bool {
	return allDigits(s, 9)
}

func allDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func toResponse(p model.Patient) patientResponse {
	resp := patientResponse{
		ID:        p.ID,
		NIF:       p.NIF,
		Nome:      p.Name,
		Telemovel: p.Phone,
	}
	if p.BirthDate != nil {
		resp.DataNasc = p.BirthDate.Format("2006-01-02")
	}
	return resp
}
