package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"driverhub/internal/config"
	"driverhub/internal/db"
	"driverhub/internal/notifications"
	"driverhub/internal/observability"
	"driverhub/internal/queue/redisclient"
	"driverhub/internal/queue/worker"
	"driverhub/internal/repo/postgres"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	prom := observability.NewProm(prometheus.NewRegistry())

	jobsRepo := postgres.NewJobsRepo(pool, prom)

	// SMTP when configured, the logging sender everywhere else. Either way
	// the circuit breaker sits in front so a dead provider fails fast and
	// the queue's backoff spaces out the retries.

	var sender notifications.Notifier

	if cfg.SMTPAddr != "" {
		sender = notifications.NewSMTPNotifier(cfg.SMTPAddr, cfg.SMTPFrom)
	} else {
		sender = notifications.NewLogNotifier(log)
	}

	notifier := notifications.NewProtectedNotifier(sender, notifications.ProtectedNotifierConfig{})

	// redis wake signals are advisory; the poll ticker still drains the
	// queue when redis is down

	var wake <-chan struct{}

	rds := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancelPing := config.WithTimeout(2 * time.Second)

	if err := rds.Ping(pingCtx); err != nil {
		log.Warn("redis unavailable, relying on polling only", "err", err)
		_ = rds.Close()
	} else {
		wake = rds.JobSignals(ctx)
		defer func() { _ = rds.Close() }()
	}
	cancelPing()

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		PollInterval:  time.Second,
		WorkerID:      workerID,
		Concurrency:   4,
		LockTTL:       60 * time.Second,
		ShutdownGrace: 10 * time.Second,
	}, jobsRepo, notifier, prom, log, wake)

	log.Info("worker started", "worker_id", workerID)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	log.Info("worker shutdown complete")
}
