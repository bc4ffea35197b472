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

	"github.com/tiendita-shop/tiendita/internal/app"
	"github.com/tiendita-shop/tiendita/internal/auth"
	"github.com/tiendita-shop/tiendita/internal/catalog"
	"github.com/tiendita-shop/tiendita/internal/images"
	"github.com/tiendita-shop/tiendita/internal/observability"
	"github.com/tiendita-shop/tiendita/internal/onboarding"
	"github.com/tiendita-shop/tiendita/internal/platform/cache"
	"github.com/tiendita-shop/tiendita/internal/platform/db"
	"github.com/tiendita-shop/tiendita/internal/shared"
	"github.com/tiendita-shop/tiendita/internal/storefront"
	"github.com/tiendita-shop/tiendita/internal/tenant"
	"github.com/tiendita-shop/tiendita/internal/view"
	"github.com/tiendita-shop/tiendita/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "tiendita_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	imageStore, err := images.NewS3Store(ctx, images.S3Options{
		Bucket:        cfg.S3Bucket,
		Region:        cfg.S3Region,
		AccessKey:     cfg.S3Key,
		SecretKey:     cfg.S3Secret,
		Endpoint:      cfg.S3Endpoint,
		PublicBaseURL: cfg.S3PublicURL,
	})
	if err != nil {
		logger.Error("init image store", slog.Any("error", err))
		os.Exit(1)
	}

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

	metrics := observability.NewMetrics()

	authService := auth.NewService(auth.NewRepository(dbpool), logger)
	authHandler := auth.NewHandler(logger, authService, sessionManager, templates)

	tenantService := tenant.NewService(tenant.NewRepository(dbpool), logger)
	settingsHandler := tenant.NewSettingsHandler(logger, tenantService, templates)

	catalogService := catalog.NewService(catalog.NewRepository(dbpool), logger)
	ingestor := images.NewIngestor(imageStore, logger, metrics)
	catalogHandler := catalog.NewHandler(logger, tenantService, catalogService, ingestor, templates)

	storefrontHandler := storefront.NewHandler(logger, tenantService, catalogService, templates, metrics)
	onboardingHandler := onboarding.NewHandler(logger, authService, tenantService, jobClient, templates, cfg.SiteURL)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		AuthHandler:       authHandler,
		OnboardingHandler: onboardingHandler,
		StorefrontHandler: storefrontHandler,
		CatalogHandler:    catalogHandler,
		SettingsHandler:   settingsHandler,
		Metrics:           metrics,
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
