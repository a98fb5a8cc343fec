package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"driverhub/internal/domain/user"
	"driverhub/internal/observability"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already taken")
)

// DB is the slice of pgxpool.Pool the repositories need. Narrowed so tests
// can swap in pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

type UsersRepo struct {
	db   DB
	prom *observability.Prom
}

func NewUsersRepo(db DB, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{db: db, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const userColumns = `id, email, username, full_name, phone, role, password_hash, enabled, text_to_speech, creation, address_id`

func scanUser(row pgx.Row) (user.User, error) {
	var (
		u        user.User
		username *string
		hash     *string
	)

	err := row.Scan(
		&u.ID,
		&u.Email,
		&username,
		&u.FullName,
		&u.Phone,
		&u.Role,
		&hash,
		&u.Enabled,
		&u.TextToSpeech,
		&u.Creation,
		&u.AddressID,
	)

	if err != nil {
		return user.User{}, err
	}

	// NULL password_hash means external-identity login only
	if username != nil {
		u.Username = *username
	}
	if hash != nil {
		u.PasswordHash = *hash
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		var scanErr error

		u, scanErr = scanUser(r.db.QueryRow(
			ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`,
			email,
		))

		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrUserNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		var scanErr error

		u, scanErr = scanUser(r.db.QueryRow(
			ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`,
			id,
		))

		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrUserNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

// Create inserts the user and, when given, its address in one transaction.
// A duplicate email surfaces as ErrEmailTaken.
func (r *UsersRepo) Create(ctx context.Context, u user.User, addr *user.Address) (user.User, error) {
	err := r.observe("users.create", func() error {
		tx, err := r.db.Begin(ctx)

		if err != nil {
			return err
		}

		defer func() { _ = tx.Rollback(ctx) }()

		if addr != nil {
			_, err = tx.Exec(ctx,
				`INSERT INTO address (id, street, number, neighborhood, city, state, uf, country)
				 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
				addr.ID, addr.Street, addr.Number, addr.Neighborhood, addr.City, addr.State, addr.UF, addr.Country,
			)

			if err != nil {
				return err
			}

			u.AddressID = &addr.ID
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO users (`+userColumns+`)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			u.ID, u.Email, nullable(u.Username), u.FullName, u.Phone, u.Role,
			nullable(u.PasswordHash), u.Enabled, u.TextToSpeech, u.Creation, u.AddressID,
		)

		if err != nil {
			return err
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, ErrEmailTaken
		}

		return user.User{}, err
	}

	return u, nil
}

// UpdateProfile changes the mutable profile fields. Creation and email are
// never touched.
func (r *UsersRepo) UpdateProfile(ctx context.Context, id, fullName string) error {
	var tag pgconn.CommandTag

	err := r.observe("users.update_profile", func() error {
		var execErr error

		tag, execErr = r.db.Exec(ctx,
			`UPDATE users SET full_name = $2 WHERE id = $1`,
			id, fullName,
		)

		return execErr
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UsersRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	var tag pgconn.CommandTag

	err := r.observe("users.update_password_hash", func() error {
		var execErr error

		tag, execErr = r.db.Exec(ctx,
			`UPDATE users SET password_hash = $2 WHERE id = $1`,
			id, hash,
		)

		return execErr
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
