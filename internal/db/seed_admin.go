package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"driverhub/internal/config"
	"driverhub/internal/security"
)

// EnsureAdminUser creates the bootstrap admin account when the environment
// asks for one and no account with that email exists yet.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, hasher *security.Hasher) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	// check if the user exists

	var dummy string

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, cfg.AdminEmail).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := hasher.Hash(ctx, cfg.AdminPassword)

	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO users (id, email, full_name, role, password_hash, enabled, creation)
		 VALUES ($1,$2,$3,$4,$5,TRUE,$6)`,
		uuid.NewString(), cfg.AdminEmail, cfg.AdminName, cfg.AdminRole, hash, time.Now().UTC(),
	)

	return err
}
