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

	_ "github.com/edulib/edulib-api/api/swagger"
	"github.com/edulib/edulib-api/internal/handler"
	"github.com/edulib/edulib-api/internal/middleware"
	"github.com/edulib/edulib-api/internal/repository"
	"github.com/edulib/edulib-api/internal/service"
	"github.com/edulib/edulib-api/pkg/cache"
	"github.com/edulib/edulib-api/pkg/config"
	"github.com/edulib/edulib-api/pkg/database"
	"github.com/edulib/edulib-api/pkg/jobs"
	"github.com/edulib/edulib-api/pkg/logger"
	corsmiddleware "github.com/edulib/edulib-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edulib/edulib-api/pkg/middleware/requestid"
	"github.com/edulib/edulib-api/pkg/storage"
)

// @title EduLib API
// @version 1.0.0
// @description Moderated catalog of educational resources
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	userRepo := repository.NewUserRepository(db)
	tagRepo := repository.NewTagRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)

	var cacheRepo *repository.CacheRepository
	if cfg.Stats.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, stats cache disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	uploads, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	metricsSvc := service.NewMetricsService()

	var statsCache service.StatsCache
	if cacheRepo != nil {
		statsCache = cacheRepo
	}
	statsSvc := service.NewStatsService(engagementRepo, tagRepo, statsCache, metricsSvc, cfg.Stats.CacheTTL, logr)

	statsQueue := jobs.NewQueue("stats", statsSvc.HandleJob, jobs.QueueConfig{
		Workers: cfg.Stats.Workers,
		Logger:  logr,
	})
	statsQueue.Start(ctx)
	defer statsQueue.Stop()
	statsSvc.AttachQueue(statsQueue)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, resourceRepo, logr)
	tagSvc := service.NewTagService(tagRepo, userRepo, nil, logr)
	engagementSvc := service.NewEngagementService(engagementRepo, resourceRepo, userRepo, statsSvc, nil, logr)
	resourceSvc := service.NewResourceService(resourceRepo, userRepo, tagSvc, engagementRepo, statsSvc, signer, uploads, nil, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		User:       handler.NewUserHandler(userSvc, metricsSvc),
		Tag:        handler.NewTagHandler(tagSvc, statsSvc),
		Resource:   handler.NewResourceHandler(resourceSvc, uploads, metricsSvc),
		Engagement: handler.NewEngagementHandler(engagementSvc, metricsSvc),
	}, authSvc)

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
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
