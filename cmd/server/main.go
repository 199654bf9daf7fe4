package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-crm/internal/api"
	"github.com/hugh/go-crm/internal/api/handlers"
	"github.com/hugh/go-crm/internal/auth"
	"github.com/hugh/go-crm/internal/cache"
	"github.com/hugh/go-crm/internal/database"
	"github.com/hugh/go-crm/internal/imports"
	"github.com/hugh/go-crm/internal/leads"
	"github.com/hugh/go-crm/internal/tasks"
	"github.com/hugh/go-crm/pkg/config"
	"github.com/hugh/go-crm/pkg/crypto"
	"github.com/hugh/go-crm/pkg/queue"
	"github.com/hugh/go-crm/pkg/storage"
	"github.com/hugh/go-crm/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting go-crm server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Redis backs import progress and the job queue. Without it imports
	// run inline and progress lives in process memory.
	var (
		progress    cache.Cache = cache.NewMemory()
		redisPinger handlers.Pinger
		redisCache  *cache.RedisCache
		asynqClient *asynq.Client
	)
	rc := cache.NewRedis(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err := rc.Ping(context.Background()); err != nil {
		logger.Warn("failed to connect to Redis, imports will run inline", "error", err)
		_ = rc.Close()
	} else {
		redisCache = rc
		progress = rc
		redisPinger = rc
		asynqClient = queue.NewClient(&cfg.Redis)
	}

	// Uploaded files are sealed only with a configured key: the worker
	// must be able to open what the server stored.
	var encryptor *crypto.Encryptor
	if cfg.Encryption.Key != "" {
		encryptor, err = crypto.NewEncryptor(cfg.Encryption.Key)
		if err != nil {
			logger.Error("failed to create encryptor", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("ENCRYPTION_KEY not set, uploaded import files are stored unencrypted")
	}

	store, err := storage.New(context.Background(), cfg.Storage, encryptor)
	if err != nil {
		logger.Error("failed to open blob storage", "error", err, "backend", cfg.Storage.Backend)
		os.Exit(1)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService)
	leadService := leads.NewService(db, logger)

	importOpts := []imports.Option{imports.WithMaxBytes(cfg.Import.MaxFileBytes)}
	if asynqClient != nil {
		importOpts = append(importOpts, imports.WithDispatcher(tasks.NewDispatcher(asynqClient)))
	}
	importService := imports.NewService(db, store, progress, leadService, logger, importOpts...)

	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisPinger,
		Logger:         logger,
		JWTService:     jwtService,
		AuthService:    authService,
		LeadService:    leadService,
		ImportService:  importService,
		MaxImportBytes: cfg.Import.MaxFileBytes,
		SecureCookies:  !cfg.Server.IsDevelopment(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if asynqClient != nil {
		asynqClient.Close()
	}
	if redisCache != nil {
		redisCache.Close()
	}
	if closer, ok := store.(io.Closer); ok {
		closer.Close()
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}
