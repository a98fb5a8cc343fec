package http

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"driverhub/internal/auth"
	"driverhub/internal/config"
	"driverhub/internal/http/handlers"
	"driverhub/internal/http/middlewares"
	"driverhub/internal/observability"
	"driverhub/internal/repo/postgres"
	"driverhub/internal/security"
	"driverhub/internal/service"
)

const maxRequestBody = 1 << 20 // 1 MiB, bodies here are small JSON documents

// NewRouter wires repositories, the auth service and the HTTP surface.
// waker may be nil when no redis is configured; enqueued emails then wait
// for the worker's next poll tick.
func NewRouter(cfg config.Config, log *slog.Logger, pool *pgxpool.Pool, waker service.Waker) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	prom := observability.NewProm(reg)

	// middleware, ordered: recovery first, then request identity, then the
	// cheap guards, then telemetry

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(maxRequestBody))
	r.Use(otelgin.Middleware("driverhub-api"))
	r.Use(prom.GinHandleMiddleware())

	// health

	var ping func(ctx context.Context) error

	if pool != nil {
		ping = pool.Ping
	}

	health := handlers.NewHealthHandler(ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// wiring

	usersRepo := postgres.NewUsersRepo(pool, prom)
	jobsRepo := postgres.NewJobsRepo(pool, prom)

	hasher := security.NewHasher(cfg.BcryptCost, prom)
	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.SessionTTL())

	svc := service.NewAuthService(usersRepo, jobsRepo, waker, jwtManager, hasher, log)

	accounts := handlers.NewAccountsHandler(svc, log)
	requireAuth := middlewares.NewAuthMiddleware(jwtManager).RequireAuth()

	users := r.Group("/user")
	{
		users.POST("/login", accounts.Login)
		users.POST("/signup", accounts.Signup)
		users.POST("/resetPasswordRequest", accounts.ResetPasswordRequest)
		users.POST("/resetPassword", accounts.ResetPassword)

		users.POST("/refresh", requireAuth, accounts.Refresh)
		users.PUT("", requireAuth, accounts.Update)
	}

	return r
}
