package postgres

import (
	"context"
	"errors"

	"github.com/blogward/blogward/internal/domain/user"
	"github.com/blogward/blogward/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrEmailAlreadyUsed = errors.New("email already in use")

const userColumns = `id, fullname, email, password_hash, dob, role, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID,
		&u.Fullname,
		&u.Email,
		&u.PasswordHash,
		&u.DOB,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// Create inserts a new account. Registration always starts at VIEWER; the
// role argument exists so tests and seeding can go through the same path.
func (r *UsersRepo) Create(ctx context.Context, fullname, email, passwordHash, dob string, role user.Role) (user.User, error) {
	var u user.User

	err := r.observe("users.create", func() error {
		row := r.pool.QueryRow(ctx,
			`INSERT INTO users (fullname, email, password_hash, dob, role, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			 RETURNING `+userColumns,
			fullname, email, passwordHash, dob, role,
		)
		var scanErr error
		u, scanErr = scanUser(row)
		return scanErr
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return user.User{}, ErrEmailAlreadyUsed
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	found := true

	err := r.observe("users.get_by_email", func() error {
		row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
		var scanErr error
		u, scanErr = scanUser(row)
		if errors.Is(scanErr, pgx.ErrNoRows) {
			// a valid empty result, not a storage failure
			found = false
			return nil
		}
		return scanErr
	})

	if err != nil {
		return user.User{}, err
	}
	if !found {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	var u user.User
	found := true

	err := r.observe("users.get_by_id", func() error {
		row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
		var scanErr error
		u, scanErr = scanUser(row)
		if errors.Is(scanErr, pgx.ErrNoRows) {
			found = false
			return nil
		}
		return scanErr
	})

	if err != nil {
		return user.User{}, err
	}
	if !found {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) EmailInUse(ctx context.Context, email string) (bool, error) {
	var exists bool

	err := r.observe("users.email_in_use", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email,
		).Scan(&exists)
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

// UpdateRoleByEmail changes the stored role. The handler layer guarantees the
// target is never the super-admin account.
func (r *UsersRepo) UpdateRoleByEmail(ctx context.Context, email string, role user.Role) error {
	var tag pgconn.CommandTag

	err := r.observe("users.update_role", func() error {
		var execErr error
		tag, execErr = r.pool.Exec(ctx,
			`UPDATE users SET role = $1, updated_at = NOW() WHERE email = $2`,
			role, email,
		)
		return execErr
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) GetSuperAdmin(ctx context.Context) (user.User, error) {
	var u user.User
	found := true

	err := r.observe("users.get_superadmin", func() error {
		row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1`, user.RoleSuperAdmin)
		var scanErr error
		u, scanErr = scanUser(row)
		if errors.Is(scanErr, pgx.ErrNoRows) {
			found = false
			return nil
		}
		return scanErr
	})

	if err != nil {
		return user.User{}, err
	}
	if !found {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) ListAdmins(ctx context.Context) ([]user.AdminListing, error) {
	var out []user.AdminListing

	err := r.observe("users.list_admins", func() error {
		rows, queryErr := r.pool.Query(ctx,
			`SELECT fullname, email FROM users WHERE role = $1 ORDER BY fullname ASC`,
			user.RoleAdmin,
		)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		out = make([]user.AdminListing, 0)
		for rows.Next() {
			var a user.AdminListing
			if scanErr := rows.Scan(&a.Fullname, &a.Email); scanErr != nil {
				return scanErr
			}
			out = append(out, a)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}
