package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"driverhub/internal/domain/job"
	"driverhub/internal/jobs"
	"driverhub/internal/notifications"
)

// ProcessNext claims one job and, if it got one, executes it on a slot
// goroutine. The bool reports whether a job was claimed. Callers must have
// reserved a slot beforehand; it is released when the job finishes or when
// nothing was claimed.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}

		return false, err
	}

	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		defer func() { <-w.slot }()

		w.runJob(ctx, j)
	}()

	return true, nil
}

func (w *Worker) runJob(ctx context.Context, j job.Job) {
	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	start := time.Now()

	execCtx, cancel := context.WithTimeout(ctx, w.cfg.LockTTL)
	defer cancel()

	err := w.execute(execCtx, j)

	result := "done"

	if err != nil {
		result = w.handleFailure(ctx, j, err)
	} else if markErr := w.repo.MarkDone(ctx, j.ID); markErr != nil {
		w.log.Error("mark done failed", "job_id", j.ID, "err", markErr)
		result = "failed"
	}

	if w.prom != nil {
		w.prom.ObserveJob(j.Type, result, time.Since(start))
	}

	w.log.Info("job finished",
		"job_id", j.ID,
		"job_type", j.Type,
		"result", result,
		"attempt", j.Attempts,
	)
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	payload, err := jobs.DecodePayload(jobs.JobType(j.Type), j.Payload)

	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case jobs.PasswordResetEmailPayload:
		return w.notifier.SendPasswordReset(ctx, notifications.SendPasswordResetInput{
			Email: p.Email,
			Name:  p.Name,
			Token: p.Token,
		})

	default:
		return fmt.Errorf("%w: %s", jobs.ErrInvalidJobType, j.Type)
	}
}

// handleFailure decides between retry and terminal failure and returns the
// result label. Undecodable payloads never retry: they can only fail again.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, execErr error) string {
	terminal := errors.Is(execErr, jobs.ErrInvalidJobType) ||
		errors.Is(execErr, jobs.ErrInvalidJobPayload) ||
		j.Attempts+1 >= j.MaxAttempts

	if terminal {
		if err := w.repo.MarkFailed(ctx, j.ID, execErr.Error()); err != nil {
			w.log.Error("mark failed failed", "job_id", j.ID, "err", err)
		}
		return "failed"
	}

	runAt := time.Now().UTC().Add(ExponentialBackoff(j.Attempts))

	if err := w.repo.Reschedule(ctx, j.ID, runAt, execErr.Error()); err != nil {
		w.log.Error("reschedule failed", "job_id", j.ID, "err", err)
		return "failed"
	}
	return "retry"
}
