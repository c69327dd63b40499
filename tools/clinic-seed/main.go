// clinic-seed provisions a provider and a matching staff login so a fresh
// environment can book its first appointment without touching SQL by hand.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	var (
		dbURL     = flag.String("database-url", getenv("DATABASE_URL", ""), "postgres connection string")
		name      = flag.String("name", getenv("PROVIDER_NAME", ""), "provider display name")
		specialty = flag.String("specialty", getenv("PROVIDER_SPECIALTY", ""), "provider specialty")
		username  = flag.String("username", getenv("STAFF_USERNAME", ""), "login username for the provider")
		password  = flag.String("password", getenv("STAFF_PASSWORD", ""), "login password for the provider")
		role      = flag.String("role", getenv("STAFF_ROLE", "medico"), "account role (admin, medico, rececao)")
	)
	flag.Parse()

	if strings.TrimSpace(*dbURL) == "" {
		fatal("DATABASE_URL is required")
	}
	if strings.TrimSpace(*name) == "" {
		fatal("PROVIDER_NAME is required")
	}
	if strings.TrimSpace(*username) == "" || len(strings.TrimSpace(*password)) < 8 {
		fatal("STAFF_USERNAME and a STAFF_PASSWORD of at least 8 characters are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, *dbURL)
	if err != nil {
		fatal(err.Error())
	}
	defer pool.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		fatal(err.Error())
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		fatal(err.Error())
	}
	defer func() { _ = tx.Rollback(ctx) }()

	providerID := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO providers (id, name, specialty, active)
		VALUES ($1, $2, NULLIF($3, ''), true)
	`, providerID, *name, *specialty)
	if err != nil {
		fatal(err.Error())
	}

	userID := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, username, name, password_hash, role, provider_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, userID, *username, *name, string(hash), *role, providerID)
	if err != nil {
		fatal(err.Error())
	}

	if err := tx.Commit(ctx); err != nil {
		fatal(err.Error())
	}

	fmt.Printf("provider %s (%s)\nuser %s (%s)\n", providerID, *name, userID, *username)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error: "+msg)
	os.Exit(1)
}
