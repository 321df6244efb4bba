package db

import (
	"context"
	"errors"

	"github.com/blogward/blogward/internal/config"
	"github.com/blogward/blogward/internal/domain/user"
	"github.com/blogward/blogward/internal/security"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSuperAdmin seeds the single SUPER_ADMIN account from config.
// The role-change endpoints refuse to touch this account, so creating it
// here is the only way it ever comes into existence.
func EnsureSuperAdmin(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.SuperAdminEmail == "" || cfg.SuperAdminPassword == "" {
		return nil
	}

	// a super-admin may already exist under a different email; never seed a second one
	var dummy int64
	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE role = $1`, user.RoleSuperAdmin).Scan(&dummy)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.SuperAdminPassword)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO users (fullname, email, password_hash, dob, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())`,
		cfg.SuperAdminName, cfg.SuperAdminEmail, hash, cfg.SuperAdminDOB, user.RoleSuperAdmin,
	)

	return err
}
