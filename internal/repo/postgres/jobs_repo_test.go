package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"driverhub/internal/domain/job"
)

func newJobsMock(t *testing.T) (pgxmock.PgxPoolIface, *JobsRepo) {
	t.Helper()

	mock, err := pgxmock.NewPool()

	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}

	t.Cleanup(mock.Close)

	return mock, NewJobsRepo(mock, nil)
}

func TestJobsCreateDefaults(t *testing.T) {
	mock, repo := newJobsMock(t)

	mock.ExpectExec("INSERT INTO jobs").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	j, err := repo.Create(context.Background(), job.CreateRequest{
		Type:    "password_reset_email",
		Payload: json.RawMessage(`{"userId":"user-1"}`),
	})

	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if j.Status != job.StatusPending {
		t.Fatalf("status = %q, want pending", j.Status)
	}

	if j.MaxAttempts != 10 {
		t.Fatalf("max attempts = %d, want default 10", j.MaxAttempts)
	}

	if j.ID == "" || j.RunAt.IsZero() {
		t.Fatalf("id/run_at not defaulted: %+v", j)
	}
}

func TestClaimNextEmptyQueue(t *testing.T) {
	mock, repo := newJobsMock(t)

	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs("worker-1").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.ClaimNext(context.Background(), "worker-1")

	if !errors.Is(err, job.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestClaimNext(t *testing.T) {
	mock, repo := newJobsMock(t)

	now := time.Now().UTC()
	lockedBy := "worker-1"

	rows := pgxmock.NewRows([]string{
		"id", "type", "payload", "status", "attempts", "max_attempts",
		"run_at", "locked_at", "locked_by", "last_error",
		"idempotency_key", "user_id", "created_at", "updated_at",
	}).AddRow(
		"job-1", "password_reset_email", json.RawMessage(`{}`), "processing", 0, 10,
		now, &now, &lockedBy, (*string)(nil),
		(*string)(nil), (*string)(nil), now, now,
	)

	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs("worker-1").
		WillReturnRows(rows)

	j, err := repo.ClaimNext(context.Background(), "worker-1")

	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}

	if j.Status != job.StatusProcessing || j.ID != "job-1" {
		t.Fatalf("unexpected job: %+v", j)
	}
}

func TestGetByIdempotencyKey(t *testing.T) {
	mock, repo := newJobsMock(t)

	now := time.Now().UTC()
	key := "password_reset:user-1:29538123"

	rows := pgxmock.NewRows([]string{
		"id", "type", "payload", "status", "attempts", "max_attempts",
		"run_at", "locked_at", "locked_by", "last_error",
		"idempotency_key", "user_id", "created_at", "updated_at",
	}).AddRow(
		"job-1", "password_reset_email", json.RawMessage(`{}`), "pending", 0, 10,
		now, (*time.Time)(nil), (*string)(nil), (*string)(nil),
		&key, (*string)(nil), now, now,
	)

	mock.ExpectQuery("FROM jobs WHERE idempotency_key").
		WithArgs(key).
		WillReturnRows(rows)

	j, err := repo.GetByIdempotencyKey(context.Background(), key)

	if err != nil {
		t.Fatalf("GetByIdempotencyKey: %v", err)
	}

	if j.ID != "job-1" || j.Status != job.StatusPending {
		t.Fatalf("unexpected job: %+v", j)
	}
}

func TestGetByIdempotencyKeyNotFound(t *testing.T) {
	mock, repo := newJobsMock(t)

	mock.ExpectQuery("FROM jobs WHERE idempotency_key").
		WithArgs("password_reset:ghost:0").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByIdempotencyKey(context.Background(), "password_reset:ghost:0")

	if !errors.Is(err, job.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMarkDoneUnknownJob(t *testing.T) {
	mock, repo := newJobsMock(t)

	mock.ExpectExec("UPDATE jobs").
		WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.MarkDone(context.Background(), "ghost"); !errors.Is(err, job.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestReschedule(t *testing.T) {
	mock, repo := newJobsMock(t)

	runAt := time.Now().Add(4 * time.Second)

	mock.ExpectExec("UPDATE jobs").
		WithArgs("job-1", runAt, "smtp timeout").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.Reschedule(context.Background(), "job-1", runAt, "smtp timeout"); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
}

func TestRequeueStaleProcessing(t *testing.T) {
	mock, repo := newJobsMock(t)

	mock.ExpectExec("UPDATE jobs").
		WithArgs(int64(60)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := repo.RequeueStaleProcessing(context.Background(), time.Minute)

	if err != nil {
		t.Fatalf("RequeueStaleProcessing: %v", err)
	}

	if n != 3 {
		t.Fatalf("requeued = %d, want 3", n)
	}
}
