package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/metafirst/supervisor/internal/app"
	"github.com/metafirst/supervisor/internal/audit"
	"github.com/metafirst/supervisor/internal/auth"
	"github.com/metafirst/supervisor/internal/membership"
	"github.com/metafirst/supervisor/internal/permission"
	"github.com/metafirst/supervisor/internal/platform/cache"
	"github.com/metafirst/supervisor/internal/platform/db"
	"github.com/metafirst/supervisor/internal/projects"
	"github.com/metafirst/supervisor/internal/rawdata"
	"github.com/metafirst/supervisor/internal/rdmp"
	"github.com/metafirst/supervisor/internal/release"
	"github.com/metafirst/supervisor/internal/samples"
	"github.com/metafirst/supervisor/internal/shared"
	"github.com/metafirst/supervisor/internal/users"
	"github.com/metafirst/supervisor/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessions := shared.NewSessionStore(redisClient, "supervisor_session", cfg.SessionTTL)

	auditService := audit.NewService(audit.NewRepository(pool))
	auditHandler := audit.NewHandler(logger, auditService)

	rdmpStore := rdmp.NewStore(rdmp.NewRepository(pool), auditService, logger)
	resolver := permission.NewResolver(permission.NewSnapshotReader(pool))
	guard := permission.Middleware{Resolver: resolver, Logger: logger}
	rdmpHandler := rdmp.NewHandler(logger, rdmpStore, guard)

	membershipService := membership.NewService(membership.NewRepository(pool), auditService, logger)
	membershipHandler := membership.NewHandler(logger, membershipService, guard)

	projectsService := projects.NewService(projects.NewRepository(pool), membershipService, auditService, logger)
	projectsHandler := projects.NewHandler(logger, projectsService)

	samplesService := samples.NewService(samples.NewRepository(pool), rdmpStore, auditService, logger)
	samplesHandler := samples.NewHandler(logger, samplesService, guard)

	rawdataService := rawdata.NewService(rawdata.NewRepository(pool), rdmpStore, auditService, logger)
	rawdataHandler := rawdata.NewHandler(logger, rawdataService, guard)

	releaseService := release.NewService(release.NewRepository(pool), rdmpStore, auditService, logger)
	snapshotBuilder := release.NewProjectSnapshotBuilder(samplesService, rawdataService)
	releaseHandler := release.NewHandler(logger, releaseService, snapshotBuilder, guard)

	authService := auth.NewService(auth.NewRepository(pool))
	authHandler := auth.NewHandler(logger, authService, sessions)

	usersHandler := users.NewHandler(logger, users.NewService(users.NewRepository(pool)))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Sessions:          sessions,
		AuthHandler:       authHandler,
		ProjectsHandler:   projectsHandler,
		RDMPHandler:       rdmpHandler,
		MembershipHandler: membershipHandler,
		SamplesHandler:    samplesHandler,
		ReleaseHandler:    releaseHandler,
		AuditHandler:      auditHandler,
		RawDataHandler:    rawdataHandler,
		UsersHandler:      usersHandler,
		JobHandler:        jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
