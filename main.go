package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"estate-backend/config"
	"estate-backend/controllers"
	"estate-backend/routes"
	"estate-backend/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := config.InitLogger(cfg.App)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.ConnectDatabase(cfg.Database, logger)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	logger.Info("database connection established and migrations applied")

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	storage, err := services.NewS3Storage(startupCtx, cfg.Storage)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}

	var pages services.PageCache = services.NoopPageCache{}
	if cfg.Redis.URL != "" {
		client, err := services.NewRedisClient(startupCtx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("redis unavailable, page cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			pages = services.NewRedisPageCache(client, cfg.Redis.PageCacheTTL)
			logger.Info("page cache enabled", zap.Duration("ttl", cfg.Redis.PageCacheTTL))
		}
	}

	projectService := services.NewProjectService(db)
	activityService := services.NewActivityService(db)
	adminService := services.NewAdminService(db)
	authService := services.NewAuthService(db, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	resolver := services.NewImageURLResolver(storage, cfg.Storage, logger)

	if seeded, err := adminService.SeedIfEmpty(startupCtx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		logger.Error("admin seed failed", zap.Error(err))
	} else if seeded {
		logger.Info("seeded initial admin", zap.String("email", cfg.Auth.AdminEmail))
	}

	// stored bucket URLs become bare storage paths
	migrated, err := projectService.NormalizeImagePaths(startupCtx, storage.StoragePathFromURL)
	if err != nil {
		logger.Error("image path migration failed", zap.Int("migrated", migrated), zap.Error(err))
	} else if migrated > 0 {
		logger.Info("normalized stored image paths", zap.Int("migrated", migrated))
	}

	actions := services.NewProjectActions(projectService, storage, resolver, pages, activityService, logger)

	projectController := controllers.NewProjectController(actions, pages, logger, cfg.Server.MaxUploadBytes)
	authController := controllers.NewAuthController(authService, logger)

	router := routes.SetupRouter(projectController, authController, authService, cfg.Server.CorsOrigins, logger)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received, shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("server stopped gracefully")
}
