package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/metafirst/supervisor/internal/app"
	"github.com/metafirst/supervisor/internal/audit"
	"github.com/metafirst/supervisor/internal/discovery"
	"github.com/metafirst/supervisor/internal/platform/cache"
	"github.com/metafirst/supervisor/internal/platform/db"
	"github.com/metafirst/supervisor/internal/projects"
	"github.com/metafirst/supervisor/internal/rdmp"
	"github.com/metafirst/supervisor/internal/samples"
	"github.com/metafirst/supervisor/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
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

	auditService := audit.NewService(audit.NewRepository(pool))
	rdmpStore := rdmp.NewStore(rdmp.NewRepository(pool), auditService, logger)
	projectsService := projects.NewService(projects.NewRepository(pool), nil, auditService, logger)
	samplesService := samples.NewService(samples.NewRepository(pool), rdmpStore, auditService, logger)

	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskCompletenessScan, Handler: func(ctx context.Context, t *asynq.Task) error {
			return jobs.ScanCompleteness(ctx, pool, logger)
		}},
	}
	cron := []jobs.CronRegistration{
		{Spec: "0 3 * * *", Task: jobs.NewCompletenessScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
	}

	if cfg.DiscoveryEnabled() {
		pusher := discovery.NewClient(cfg.DiscoveryURL, cfg.DiscoveryAPIKey)
		discoveryService := discovery.NewService(projectsService, rdmpStore, samplesService, pusher, redisClient, logger)
		handlers = append(handlers, jobs.TaskHandler{
			Type:    jobs.TaskDiscoveryPush,
			Handler: jobs.NewDiscoveryPushHandler(discoveryService, projectsService, logger),
		})
		pushTask, err := jobs.NewDiscoveryPushTask(jobs.DiscoveryPushPayload{})
		if err != nil {
			logger.Error("build discovery push task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{
			Spec: "30 2 * * *", Task: pushTask, Options: []asynq.Option{asynq.MaxRetry(3)},
		})
	} else {
		logger.Info("discovery push disabled, no DISCOVERY_URL configured")
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  handlers,
		Cron:      cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
