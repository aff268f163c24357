package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/nuxtbe/core-api/api/swagger"
	"github.com/nuxtbe/core-api/internal/billing"
	"github.com/nuxtbe/core-api/internal/handler"
	"github.com/nuxtbe/core-api/internal/middleware"
	"github.com/nuxtbe/core-api/internal/repository"
	"github.com/nuxtbe/core-api/internal/service"
	"github.com/nuxtbe/core-api/pkg/cache"
	"github.com/nuxtbe/core-api/pkg/config"
	"github.com/nuxtbe/core-api/pkg/database"
	"github.com/nuxtbe/core-api/pkg/logger"
	"github.com/nuxtbe/core-api/pkg/mailer"
	corsmiddleware "github.com/nuxtbe/core-api/pkg/middleware/cors"
	reqidmiddleware "github.com/nuxtbe/core-api/pkg/middleware/requestid"
	"github.com/nuxtbe/core-api/pkg/storage"
)

// @title NuxtBE Core API
// @version 1.0.0
// @description Directory listings, billing webhooks and export jobs
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(cfg.Database); err != nil {
			logr.Sugar().Fatalw("failed to run migrations", "error", err)
		}
	}

	metricsSvc := service.NewMetricsService()

	var resultCache service.CacheStore
	var redisPing handler.PingerFunc
	if cfg.Directory.CacheBackend == "redis" {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close()
		resultCache = repository.NewCacheRepository(redisClient, "directory")
		redisPing = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		resultCache = service.NewMemoryStore(cfg.Directory.CacheMaxEntries)
	}

	directoryRepo := repository.NewDirectoryRepository(db)
	interactionRepo := repository.NewInteractionRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	billingRepo := repository.NewBillingRepository(db)

	directorySvc := service.NewDirectoryService(
		directoryRepo, interactionRepo, commentRepo,
		resultCache, metricsSvc, cfg.Directory, nil, logr)

	var resolver billing.ProductResolver
	var stripeClient *billing.StripeClient
	if cfg.Billing.StripeAPIKey != "" {
		stripeClient = billing.NewStripeClient(cfg.Billing.StripeAPIKey, cfg.Billing.ProviderTimeout)
		resolver = stripeClient
	}
	adapters := []billing.Adapter{
		billing.NewStripeAdapter(cfg.Billing.StripeWebhookSecret, cfg.Billing.StripeSignatureTolerance, resolver, cfg.Billing.ProviderTimeout),
		billing.NewLemonSqueezyAdapter(cfg.Billing.LemonSqueezyWebhookSecret),
	}
	welcomeMail := mailer.New(mailer.Config{
		APIKey:   cfg.Mailer.APIKey,
		BaseURL:  cfg.Mailer.BaseURL,
		From:     cfg.Billing.WelcomeEmailFrom,
		SiteName: cfg.Mailer.SiteName,
		Timeout:  cfg.Mailer.Timeout,
	}, logr)

	var billingSvc *service.BillingService
	if stripeClient != nil {
		billingSvc = service.NewBillingService(billingRepo, adapters, welcomeMail, stripeClient, metricsSvc, cfg.Billing, logr)
	} else {
		billingSvc = service.NewBillingService(billingRepo, adapters, welcomeMail, nil, metricsSvc, cfg.Billing, logr)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	validator := middleware.NewTokenValidator(cfg.JWT)
	authed := middleware.JWT(validator)
	optional := middleware.OptionalJWT(validator)

	metricsHandler := handler.NewMetricsHandler(metricsSvc).WithDependency("postgres", db)
	if redisPing != nil {
		metricsHandler.WithDependency("redis", redisPing)
	}
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	directoryHandler := handler.NewDirectoryHandler(directorySvc)
	items := api.Group("/directory/items")
	items.GET("", optional, directoryHandler.List)
	items.GET("/:id", optional, directoryHandler.Get)
	items.POST("", authed, directoryHandler.Create)
	items.PUT("/:id", authed, directoryHandler.Update)
	items.DELETE("/:id", authed, directoryHandler.Delete)
	items.POST("/:id/like", authed, directoryHandler.ToggleLike)
	items.POST("/:id/save", authed, directoryHandler.ToggleSave)
	items.POST("/:id/view", optional, directoryHandler.RecordView)
	items.GET("/:id/comments", directoryHandler.ListComments)
	items.POST("/:id/comments", authed, directoryHandler.AddComment)
	api.DELETE("/directory/comments/:id", authed, directoryHandler.DeleteComment)
	api.GET("/directory/groups", directoryHandler.ListGroups)
	api.GET("/directory/tags", directoryHandler.ListTags)

	admin := api.Group("/admin", authed, middleware.RequireAdmin())
	admin.POST("/directory/cache/clear", directoryHandler.ClearCache)

	webhookHandler := handler.NewWebhookHandler(billingSvc, logr)
	api.POST("/webhooks/:provider", webhookHandler.Receive)
	api.GET("/billing/portal", authed, webhookHandler.Portal)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Exports.Enabled {
		files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportRepo := repository.NewExportRepository(db)
		exportSvc := service.NewExportService(directoryRepo, exportRepo, files, signer, metricsSvc, cfg.Exports, logr)
		exportSvc.Start(ctx)
		defer exportSvc.Stop()

		// Generated files outlive their download links and need reaping.
		go func() {
			ticker := time.NewTicker(cfg.Exports.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					exportSvc.Cleanup(cfg.Exports.FileTTL)
				}
			}
		}()

		exportHandler := handler.NewExportHandler(exportSvc)
		api.POST("/exports", authed, exportHandler.Create)
		api.GET("/exports", authed, exportHandler.List)
		api.GET("/exports/:id", authed, exportHandler.Get)
		api.GET("/exports/:id/download-url", authed, exportHandler.DownloadURL)
		api.GET("/exports/download", exportHandler.Download)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
