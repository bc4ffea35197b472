package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/tiendita-shop/tiendita/internal/app"
	"github.com/tiendita-shop/tiendita/internal/auth"
	"github.com/tiendita-shop/tiendita/internal/catalog"
	jobmetrics "github.com/tiendita-shop/tiendita/internal/jobs"
	"github.com/tiendita-shop/tiendita/internal/platform/db"
	"github.com/tiendita-shop/tiendita/jobs"
)

func main() {
	if app.InTestMode() {
		slog.New(slog.NewTextHandler(io.Discard, nil)).Info("test mode, skipping worker startup")
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

	authService := auth.NewService(auth.NewRepository(pool), logger)
	catalogService := catalog.NewService(catalog.NewRepository(pool), logger)
	mailer := jobs.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Mailer:    mailer,
		Sweeper:   catalogService,
		Pruner:    authService,
		Metrics:   jobmetrics.NewMetrics(nil),
		Cron:      jobs.DefaultCron(),
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
