package storage

import (
	"context"

	"github.com/pedroo-goncalves/Projeto-FBD/libs/db"
	"github.com/pedroo-goncalves/Projeto-FBD/services/agenda-service/internal/model"
)

type ProviderRepository struct {
	pool *db.Pool
}

func NewProviderRepository(pool *db.Pool) *ProviderRepository {
	return &ProviderRepository{pool: pool}
}

// ProviderExists satisfies availability.Directory. Inactive providers read as
// absent so their calendars stop offering slots without deleting history.
func (r *ProviderRepository) ProviderExists(ctx context.Context, providerID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM providers WHERE id::text = $1 AND active)
	`, providerID).Scan(&exists)
	return exists, err
}

func (r *ProviderRepository) ListActive(ctx context.Context) ([]model.Provider, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, COALESCE(specialty, ''), active
		FROM providers
		WHERE active
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []model.Provider
	for rows.Next() {
		var p model.Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.Specialty, &p.Active); err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return providers, nil
}

func (r *ProviderRepository) Get(ctx context.Context, id string) (model.Provider, error) {
	var p model.Provider
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(specialty, ''), active
		FROM providers
		WHERE id::text = $1
	`, id).Scan(&p.ID, &p.Name, &p.Specialty, &p.Active)
	return p, err
}
