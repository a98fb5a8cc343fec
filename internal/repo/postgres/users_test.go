package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"

	"driverhub/internal/domain/user"
)

func newUsersMock(t *testing.T) (pgxmock.PgxPoolIface, *UsersRepo) {
	t.Helper()

	mock, err := pgxmock.NewPool()

	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}

	t.Cleanup(mock.Close)

	return mock, NewUsersRepo(mock, nil)
}

func strPtr(s string) *string { return &s }

func userRow() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "email", "username", "full_name", "phone", "role",
		"password_hash", "enabled", "text_to_speech", "creation", "address_id",
	}).AddRow(
		"user-1", "ada@example.com", (*string)(nil), "Ada", "555-0100", user.DefaultRole,
		strPtr("$2a$08$hash"), true, false, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), (*string)(nil),
	)
}

func TestGetByEmail(t *testing.T) {
	mock, repo := newUsersMock(t)

	mock.ExpectQuery("FROM users WHERE email").
		WithArgs("ada@example.com").
		WillReturnRows(userRow())

	u, err := repo.GetByEmail(context.Background(), "ada@example.com")

	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}

	if u.ID != "user-1" || u.PasswordHash != "$2a$08$hash" {
		t.Fatalf("unexpected user: %+v", u)
	}

	if u.Username != "" {
		t.Fatalf("NULL username should scan to empty string, got %q", u.Username)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetByEmailNotFound(t *testing.T) {
	mock, repo := newUsersMock(t)

	mock.ExpectQuery("FROM users WHERE email").
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")

	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGetByID(t *testing.T) {
	mock, repo := newUsersMock(t)

	mock.ExpectQuery("FROM users WHERE id").
		WithArgs("user-1").
		WillReturnRows(userRow())

	u, err := repo.GetByID(context.Background(), "user-1")

	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	if u.Email != "ada@example.com" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	mock, repo := newUsersMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), user.User{
		ID:    "user-2",
		Email: "ada@example.com",
	}, nil)

	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateWithAddress(t *testing.T) {
	mock, repo := newUsersMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO address").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO users").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	addr := &user.Address{ID: "addr-1", Street: "Rua A", City: "Recife"}

	created, err := repo.Create(context.Background(), user.User{
		ID:    "user-1",
		Email: "ada@example.com",
	}, addr)

	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if created.AddressID == nil || *created.AddressID != "addr-1" {
		t.Fatalf("address not linked: %+v", created)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdatePasswordHash(t *testing.T) {
	mock, repo := newUsersMock(t)

	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs("user-1", "$2a$08$newhash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.UpdatePasswordHash(context.Background(), "user-1", "$2a$08$newhash"); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}
}

func TestUpdatePasswordHashUnknownUser(t *testing.T) {
	mock, repo := newUsersMock(t)

	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs("ghost", "$2a$08$newhash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdatePasswordHash(context.Background(), "ghost", "$2a$08$newhash")

	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
