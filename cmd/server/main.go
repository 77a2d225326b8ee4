// Package main runs the beta portal HTTP server with WebSocket dashboard feeds and graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/teenagetech/beta/config"
	"github.com/teenagetech/beta/internal/applications"
	"github.com/teenagetech/beta/internal/auth"
	"github.com/teenagetech/beta/internal/betacodes"
	"github.com/teenagetech/beta/internal/builds"
	"github.com/teenagetech/beta/internal/feedback"
	"github.com/teenagetech/beta/internal/middleware"
	"github.com/teenagetech/beta/internal/notifications"
	"github.com/teenagetech/beta/internal/realtime"
	"github.com/teenagetech/beta/internal/resignations"
	"github.com/teenagetech/beta/internal/session"
	"github.com/teenagetech/beta/pkg/database"
	"github.com/teenagetech/beta/pkg/queue"
	"github.com/teenagetech/beta/pkg/redis"
	"github.com/teenagetech/beta/pkg/response"
	"github.com/teenagetech/beta/pkg/storage"
	"github.com/teenagetech/beta/pkg/utils"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			BuildsBucket:         cfg.AWS.BuildsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	// Accounts and admin authority
	authRepo := auth.NewRepository(pool)
	if cfg.Admin.Password != "" {
		hash, err := utils.HashPassword(cfg.Admin.Password)
		if err != nil {
			logger.Fatal("hash admin password", zap.Error(err))
		}
		if err := authRepo.SeedAdmin(ctx, cfg.Admin.Email, hash); err != nil {
			logger.Fatal("seed admin", zap.Error(err))
		}
	} else {
		logger.Warn("ADMIN_PASSWORD not set; admin login disabled until an admin row exists")
	}
	policy := auth.NewPolicy(authRepo, logger)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Session gate: beta code validation plus Redis-backed tester sessions
	codeRepo := betacodes.NewRepository(pool)
	sessionStore := session.NewRedisStore(rdb.Client, logger)
	sessionTTL := time.Duration(cfg.Session.ExpireDays) * 24 * time.Hour
	gate := session.NewGate(codeRepo, policy, sessionStore, sessionTTL, logger)

	authHandler := auth.NewHandler(gate, authRepo, jwtService, logger)
	codeHandler := betacodes.NewHandler(codeRepo, logger)

	// Dashboard feeds
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Email jobs
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Applications
	applicationRepo := applications.NewRepository(pool)
	applicationHandler := applications.NewHandler(applicationRepo, authRepo, codeRepo, hub, jobQueue, cfg.Server.BaseURL, logger)

	// Feedback
	feedbackRepo := feedback.NewRepository(pool)
	feedbackHandler := feedback.NewHandler(feedbackRepo, hub, logger)

	// Resignations
	resignationRepo := resignations.NewRepository(pool)
	resignationHandler := resignations.NewHandler(resignationRepo, gate, hub, logger)

	// Notify-me signups
	notificationRepo := notifications.NewRepository(pool)
	notificationHandler := notifications.NewHandler(notificationRepo, hub, jobQueue, logger)

	// Builds
	buildRepo := builds.NewRepository(pool)
	var objectStore builds.ObjectStore
	if s3Client != nil {
		objectStore = s3Client
	}
	buildHandler := builds.NewHandler(buildRepo, objectStore, logger)

	// Dashboard WebSocket auth: admin JWT validated against the allow-list
	wsAuthorize := func(token string) (string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", err
		}
		if !policy.IsAdmin(context.Background(), claims.Email) {
			return "", errors.New("not an administrator")
		}
		return claims.Email, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/verify/:token", authHandler.Verify)
	}

	// Public: apply for the beta, sign up for release notifications
	router.POST("/applications", applicationHandler.Submit)
	router.POST("/notifications", notificationHandler.Notify)

	// API with session or JWT identity attached (never aborts on its own)
	api := router.Group("")
	api.Use(middleware.CurrentUser(gate, jwtService, policy))
	{
		api.GET("/auth/session", authHandler.Session)
		api.POST("/auth/logout", authHandler.Logout)

		// Testers
		api.POST("/feedback/bugs", middleware.RequireTester(), feedbackHandler.SubmitBug)
		api.POST("/feedback/features", middleware.RequireTester(), feedbackHandler.SubmitFeature)
		api.POST("/feedback/experiences", middleware.RequireTester(), feedbackHandler.SubmitRating)
		api.POST("/auth/resign", middleware.RequireTester(), resignationHandler.Resign)
		api.GET("/builds", middleware.RequireTester(), buildHandler.List)
		api.GET("/builds/:id/download-url", middleware.RequireTester(), buildHandler.DownloadURL)

		// Admin dashboard
		admin := api.Group("", middleware.RequireAdmin())
		{
			admin.GET("/applications", applicationHandler.List)
			admin.POST("/applications/:id/approve", applicationHandler.Approve)
			admin.POST("/applications/:id/deny", applicationHandler.Deny)

			admin.GET("/feedback/bugs", feedbackHandler.ListBugs)
			admin.GET("/feedback/features", feedbackHandler.ListFeatures)
			admin.GET("/feedback/experiences", feedbackHandler.ListRatings)
			admin.PATCH("/feedback/bugs/:id/resolve", feedbackHandler.ResolveBug)
			admin.PATCH("/feedback/features/:id/implement", feedbackHandler.ImplementFeature)
			admin.DELETE("/feedback/:kind/:id", feedbackHandler.Delete)

			admin.GET("/betacodes", codeHandler.List)
			admin.GET("/resignations", resignationHandler.List)
			admin.GET("/notifications", notificationHandler.List)

			admin.POST("/builds/upload-url", buildHandler.UploadURL)
			admin.POST("/builds/upload", buildHandler.Upload)
			admin.POST("/builds", buildHandler.Register)
			admin.DELETE("/builds/:id", buildHandler.Delete)
		}
	}

	// WebSocket dashboard feeds (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, wsAuthorize))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
