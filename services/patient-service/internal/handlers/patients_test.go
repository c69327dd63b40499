package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pedroo-goncalves/Projeto-FBD/services/patient-service/internal/model"
	"github.com/pedroo-goncalves/Projeto-FBD/services/patient-service/internal/storage"
)

type fakeStore struct {
	existing map[string]model.Patient
	searched string
}

func (f *fakeStore) Upsert(_ context.Context, p *model.Patient) (model.Patient, bool, error) {
	if got, ok := f.existing[p.NIF]; ok {
		return got, false, nil
	}
	stored := *p
	stored.ID = "patient-1"
	return stored, true, nil
}

func (f *fakeStore) Search(_ context.Context, query string, _ int) ([]model.Patient, error) {
	f.searched = query
	var out []model.Patient
	for _, p := range f.existing {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) GetByNIF(_ context.Context, nif string) (model.Patient, error) {
	if p, ok := f.existing[nif]; ok {
		return p, nil
	}
	return model.Patient{}, storage.ErrPatientNotFound
}

func newHandler(store *fakeStore) *PatientHandler {
	return NewPatientHandler(store, slog.New(slog.DiscardHandler))
}

func TestCreate_QuickAdd(t *testing.T) {
	h := newHandler(&fakeStore{})

	body := `{"nif":"123456789","nome":"Maria Silva","telemovel":"912345678","data_nasc":"1990-04-12"}`
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest("POST", "/api/v1/patients", strings.NewReader(body)))

	if rec.Code != 201 {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var resp patientResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "patient-1" || resp.DataNasc != "1990-04-12" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCreate_ExistingNIFReturnsStoredRecord(t *testing.T) {
	h := newHandler(&fakeStore{existing: map[string]model.Patient{
		"123456789": {ID: "patient-7", NIF: "123456789", Name: "Maria Silva"},
	}})

	body := `{"nif":"123456789","nome":"M. Silva"}`
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest("POST", "/api/v1/patients", strings.NewReader(body)))

	if rec.Code != 200 {
		t.Fatalf("expected 200 for existing patient, got %d", rec.Code)
	}
	var resp patientResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "patient-7" || resp.Nome != "Maria Silva" {
		t.Fatalf("expected the stored record back, got %+v", resp)
	}
}

func TestCreate_Validation(t *testing.T) {
	h := newHandler(&fakeStore{})

	cases := []struct {
		name string
		body string
	}{
		{"short nif", `{"nif":"12345","nome":"Maria"}`},
		{"letters in nif", `{"nif":"12345678a","nome":"Maria"}`},
		{"missing nome", `{"nif":"123456789"}`},
		{"bad phone", `{"nif":"123456789","nome":"Maria","telemovel":"12"}`},
		{"bad birth date", `{"nif":"123456789","nome":"Maria","data_nasc":"12-04-1990"}`},
		{"not json", `nif=123456789`},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.Create(rec, httptest.NewRequest("POST", "/api/v1/patients", strings.NewReader(tc.body)))
		if rec.Code != 400 {
			t.Fatalf("%s: expected 400, got %d", tc.name, rec.Code)
		}
	}
}

func TestGet_UnknownPatient(t *testing.T) {
	h := newHandler(&fakeStore{})

	req := httptest.NewRequest("GET", "/api/v1/patients/123456789", nil)
	req.SetPathValue("nif", "123456789")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != 404 {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestValidNIF(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"123456789", true},
		{"12345678", false},
		{"1234567890", false},
		{"12345678x", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidNIF(tc.in); got != tc.want {
			t.Fatalf("ValidNIF(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
