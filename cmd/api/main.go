package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"driverhub/internal/config"
	"driverhub/internal/db"
	httpx "driverhub/internal/http"
	"driverhub/internal/observability"
	"driverhub/internal/queue/redisclient"
	"driverhub/internal/security"
	"driverhub/internal/service"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// tracing

	shutdownTracer, err := observability.InitTracer(context.Background(), "driverhub-api", cfg.OTLPEndpoint)

	if err != nil {
		log.Warn("tracing disabled", "err", err)
		shutdownTracer = func(context.Context) error { return nil }
	}

	// database

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	if err := db.Migrate(cfg.DBURL); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	// bootstrap admin (no-op unless ADMIN_EMAIL/ADMIN_PASSWORD are set)

	seedCtx, cancelSeed := config.WithTimeout(10 * time.Second)

	seedHasher := security.NewHasher(cfg.BcryptCost, nil)

	if err := db.EnsureAdminUser(seedCtx, pool, cfg, seedHasher); err != nil {
		log.Error("admin seed failed", "err", err)
		cancelSeed()
		os.Exit(1)
	}
	cancelSeed()

	// redis wake channel is optional; without it emails wait for the poll

	var waker service.Waker

	rds := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancelPing := config.WithTimeout(2 * time.Second)

	if err := rds.Ping(pingCtx); err != nil {
		log.Warn("redis unavailable, worker wake-ups disabled", "err", err)
		_ = rds.Close()
	} else {
		waker = rds
		defer func() { _ = rds.Close() }()
	}
	cancelPing()

	router := httpx.NewRouter(cfg, log, pool, waker)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)

		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)

		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}

		if err := shutdownTracer(ctx); err != nil {
			log.Warn("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
