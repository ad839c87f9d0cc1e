// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/DevViTien/devshop-web-app/internal/cache"
	"github.com/DevViTien/devshop-web-app/internal/config"
	"github.com/DevViTien/devshop-web-app/internal/database"
	"github.com/DevViTien/devshop-web-app/internal/event"
	"github.com/DevViTien/devshop-web-app/internal/i18n"
	"github.com/DevViTien/devshop-web-app/internal/metrics"
	"github.com/DevViTien/devshop-web-app/internal/middleware"
	"github.com/DevViTien/devshop-web-app/internal/repository"
	"github.com/DevViTien/devshop-web-app/internal/router"
	"github.com/DevViTien/devshop-web-app/internal/services"
	"github.com/DevViTien/devshop-web-app/internal/telemetry"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

func setupLogging(cfg *config.Config) {
	if cfg.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(logrus.DebugLevel)
}

func openStore(ctx context.Context, cfg *config.Config) (*repository.Store, error) {
	if cfg.Storage.Driver == "memory" {
		logrus.Warn("Using in-memory storage, data is lost on restart")
		return repository.NewMemoryStore(), nil
	}

	conn := database.NewConn(cfg.Database)
	if err := database.RunMigrations(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return repository.NewGormStore(conn), nil
}

func openCache(ctx context.Context, cfg *config.Config) cache.Store {
	if !cfg.Redis.Enabled {
		return cache.NewMemory()
	}
	store, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logrus.WithError(err).Warn("Redis unavailable, using in-process cache")
		return cache.NewMemory()
	}
	return store
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	setupLogging(cfg)

	utils.SetJWTSecret(cfg.JWT.SecretKey)

	if err := i18n.Initialize(cfg.I18n.DefaultLocale); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize i18n")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.Telemetry.TracingEnabled {
		if _, err := telemetry.InitTracer(cfg.Telemetry.ServiceName); err != nil {
			logrus.WithError(err).Warn("Tracing disabled")
		}
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize storage")
	}
	defer store.Close()

	cacheStore := openCache(ctx, cfg)
	defer cacheStore.Close()

	events := event.NewPublisher(cfg.NATS)
	defer events.Close()

	storage, err := services.NewStorageService(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize file storage")
	}

	limiters := middleware.NewLimiters(cfg.RateLimit)
	limiters.StartCleanup(ctx)

	deps := &router.Dependencies{
		Config:   cfg,
		Store:    store,
		Cache:    cacheStore,
		Events:   events,
		Gateway:  services.NewPaymentGateway(cfg),
		Links:    storage,
		Metrics:  metrics.NewMetrics(),
		Limiters: limiters,
	}
	svc := router.NewServices(deps)

	if err := svc.Users.EnsureAdmin(ctx, cfg.Seed); err != nil {
		logrus.WithError(err).Fatal("Failed to seed admin account")
	}

	svc.Orders.StartSweeper(ctx, time.Duration(cfg.Orders.SweepIntervalSeconds)*time.Second)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := router.Initialize(deps, svc)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}
	telemetry.ShutdownTracer(shutdownCtx)

	logrus.Info("Server exited")
}
