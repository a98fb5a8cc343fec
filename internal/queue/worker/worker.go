package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"driverhub/internal/domain/job"
	"driverhub/internal/notifications"
	"driverhub/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	Concurrency   int
	LockTTL       time.Duration
	ShutdownGrace time.Duration
}

// Worker drains the postgres jobs queue. It polls on a ticker and also
// reacts to redis wake signals so enqueued work does not wait for the next
// tick.
type Worker struct {
	cfg      Config
	repo     JobsRepository
	notifier notifications.Notifier
	prom     *observability.Prom
	log      *slog.Logger
	wake     <-chan struct{}

	wg   sync.WaitGroup
	slot chan struct{}
}

func New(cfg Config, repo JobsRepository, notifier notifications.Notifier, prom *observability.Prom, log *slog.Logger, wake <-chan struct{}) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 60 * time.Second
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		prom:     prom,
		log:      log,
		wake:     wake,
		slot:     make(chan struct{}, cfg.Concurrency),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	// sweep stale locks well before they pile up
	sweep := time.NewTicker(w.cfg.LockTTL)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker received shutdown signal")
			return w.drain()

		case <-sweep.C:
			n, err := w.repo.RequeueStaleProcessing(ctx, w.cfg.LockTTL)

			if err != nil {
				w.log.Warn("stale requeue failed", "err", err)
			} else if n > 0 {
				w.log.Info("requeued stale jobs", "count", n)
			}

		case <-ticker.C:
			w.claimLoop(ctx)

		case _, ok := <-w.wake:
			if !ok {
				continue
			}
			w.claimLoop(ctx)
		}
	}
}

// claimLoop claims jobs until the queue is empty or every slot is busy.
func (w *Worker) claimLoop(ctx context.Context) {
	for {
		select {
		case w.slot <- struct{}{}:
		default:
			return // all slots busy
		}

		claimed, err := w.ProcessNext(ctx)

		if err != nil {
			w.log.Error("claim error", "err", err)
		}

		if !claimed {
			<-w.slot
			return
		}
	}
}

func (w *Worker) drain() error {
	done := make(chan struct{})

	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.log.Info("worker drained")
	case <-time.After(w.cfg.ShutdownGrace):
		w.log.Error("worker drain timed out")
	}
	return nil
}
