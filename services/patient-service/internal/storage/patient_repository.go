package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pedroo-goncalves/Projeto-FBD/libs/db"
	"github.com/pedroo-goncalves/Projeto-FBD/services/patient-service/internal/model"
)

var ErrPatientNotFound = errors.New("patient not found")

type PatientRepository struct {
	pool *db.Pool
}

func NewPatientRepository(pool *db.Pool) *PatientRepository {
	return &PatientRepository{pool: pool}
}

// Upsert inserts a patient keyed by NIF. When the NIF already exists the
// stored record is returned untouched (quick-add never overwrites data
// entered earlier at the desk). The bool reports whether a row was created.
func (r *PatientRepository) Upsert(ctx context.Context, p *model.Patient) (model.Patient, bool, error) {
	var stored model.Patient
	var birth *time.Time
	err := r.pool.QueryRow(ctx, `
		INSERT INTO patients (nif, name, phone, birth_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (nif) DO NOTHING
		RETURNING id, nif, name, phone, birth_date, created_at
	`, p.NIF, p.Name, p.Phone, p.BirthDate).Scan(
		&stored.ID, &stored.NIF, &stored.Name, &stored.Phone, &birth, &stored.CreatedAt,
	)
	if err == nil {
		stored.BirthDate = birth
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Patient{}, false, err
	}

	// Conflict path: the insert did nothing, fetch the existing row.
	existing, err := r.GetByNIF(ctx, p.NIF)
	if err != nil {
		return model.Patient{}, false, err
	}
	return existing, false, nil
}

func (r *PatientRepository) GetByNIF(ctx context.Context, nif string) (model.Patient, error) {
	var p model.Patient
	var birth *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT id, nif, name, COALESCE(phone, ''), birth_date, created_at
		FROM patients
		WHERE nif = $1
	`, nif).Scan(&p.ID, &p.NIF, &p.Name, &p.Phone, &birth, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Patient{}, ErrPatientNotFound
	}
	if err != nil {
		return model.Patient{}, err
	}
	p.BirthDate = birth
	return p, nil
}

// Search matches a name substring or NIF prefix, newest first. An empty
// query lists recent patients.
func (r *PatientRepository) Search(ctx context.Context, query string, limit int) ([]model.Patient, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, nif, name, COALESCE(phone, ''), birth_date, created_at
		FROM patients
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%' OR nif LIKE $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []model.Patient
	for rows.Next() {
		var p model.Patient
		var birth *time.Time
		if err := rows.Scan(&p.ID, &p.NIF, &p.Name, &p.Phone, &birth, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.BirthDate = birth
		patients = append(patients, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return patients, nil
}

// ApplyBooked bumps a patient's visit stats from an agenda booking event.
// Runs on the caller's transaction alongside the inbox dedupe.
func (r *PatientRepository) ApplyBooked(ctx context.Context, tx pgx.Tx, nif string, day time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO patient_visit_stats (nif, total_visits, last_visit_day)
		VALUES ($1, 1, $2)
		ON CONFLICT (nif) DO UPDATE
		SET total_visits = patient_visit_stats.total_visits + 1,
			last_visit_day = GREATEST(patient_visit_stats.last_visit_day, EXCLUDED.last_visit_day)
	`, nif, day)
	return err
}

// ApplyCancelled reverses a booking in the stats.
func (r *PatientRepository) ApplyCancelled(ctx context.Context, tx pgx.Tx, nif string) error {
	_, err := tx.Exec(ctx, `
		UPDATE patient_visit_stats
		SET total_visits = GREATEST(total_visits - 1, 0),
			cancelled = cancelled + 1
		WHERE nif = $1
	`, nif)
	return err
}
