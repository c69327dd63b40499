package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/pedroo-goncalves/Projeto-FBD/libs/db"
)

// Staff roles. Medico accounts are linked to an agenda provider through
// ProviderID; admin and rececao accounts leave it empty.
const (
	RoleAdmin   = "admin"
	RoleMedico  = "medico"
	RoleRececao = "rececao"
)

type User struct {
	ID           string
	Username     string
	Name         string
	PasswordHash string
	Role         string
	ProviderID   string
}

type UserRepository struct {
	pool *db.Pool
}

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, username, name, password_hash, role, provider_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
	`, user.ID, user.Username, user.Name, user.PasswordHash, user.Role, user.ProviderID)
	return err
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (User, error) {
	return r.get(ctx, `WHERE username = $1`, username)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (User, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

func (r *UserRepository) get(ctx context.Context, where string, arg any) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `
		SELECT id, username, name, password_hash, role, COALESCE(provider_id::text, '')
		FROM users
		`+where, arg).Scan(
		&user.ID, &user.Username, &user.Name, &user.PasswordHash, &user.Role, &user.ProviderID,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
