package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-crm/internal/cache"
	"github.com/hugh/go-crm/internal/database"
	"github.com/hugh/go-crm/internal/imports"
	"github.com/hugh/go-crm/internal/leads"
	"github.com/hugh/go-crm/internal/tasks"
	"github.com/hugh/go-crm/pkg/config"
	"github.com/hugh/go-crm/pkg/crypto"
	"github.com/hugh/go-crm/pkg/mailer"
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

	logger.Info("starting go-crm worker", "concurrency", cfg.Worker.Concurrency)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	progress := cache.NewRedis(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err := progress.Ping(context.Background()); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	var encryptor *crypto.Encryptor
	if cfg.Encryption.Key != "" {
		encryptor, err = crypto.NewEncryptor(cfg.Encryption.Key)
		if err != nil {
			logger.Error("failed to create encryptor", "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.New(context.Background(), cfg.Storage, encryptor)
	if err != nil {
		logger.Error("failed to open blob storage", "error", err, "backend", cfg.Storage.Backend)
		os.Exit(1)
	}

	leadService := leads.NewService(db, logger)
	importService := imports.NewService(db, store, progress, leadService, logger,
		imports.WithMaxBytes(cfg.Import.MaxFileBytes))

	handler := tasks.NewHandler(db, logger, importService, leadService, mailer.New(cfg.SMTP, logger))

	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	srv := queue.NewServer(&cfg.Redis, cfg.Worker.Concurrency, logger)
	if err := srv.Start(mux); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	scheduler := startScheduler(cfg, logger)
	logBacklog(cfg, logger)

	logger.Info("worker started, waiting for tasks...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")

	if scheduler != nil {
		scheduler.Shutdown()
	}
	srv.Shutdown()

	progress.Close()
	if closer, ok := store.(io.Closer); ok {
		closer.Close()
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}

// startScheduler registers the daily follow-up reminder run. It returns nil
// when reminders are disabled or the schedule is invalid.
func startScheduler(cfg *config.Config, logger *slog.Logger) *asynq.Scheduler {
	if !cfg.Reminder.Enabled {
		logger.Info("follow-up reminders disabled")
		return nil
	}
	if err := util.ValidateCronExpr(cfg.Reminder.Cron); err != nil {
		logger.Error("invalid REMINDER_CRON, reminders disabled", "cron", cfg.Reminder.Cron, "error", err)
		return nil
	}

	task, err := tasks.NewFollowUpRemindersTask(tasks.FollowUpRemindersPayload{})
	if err != nil {
		logger.Error("failed to build reminder task", "error", err)
		return nil
	}

	scheduler := queue.NewScheduler(&cfg.Redis, logger)
	entryID, err := scheduler.Register(cfg.Reminder.Cron, task,
		asynq.Queue(queue.QueueReminders),
		asynq.MaxRetry(2),
		asynq.Unique(time.Hour),
	)
	if err != nil {
		logger.Error("failed to register reminder schedule", "error", err)
		return nil
	}
	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		return nil
	}

	next, _ := util.NextCronTime(cfg.Reminder.Cron, time.Now())
	logger.Info("follow-up reminders scheduled", "entry_id", entryID, "cron", cfg.Reminder.Cron, "next_run", next)
	return scheduler
}

// logBacklog reports work already waiting in the queues at startup.
func logBacklog(cfg *config.Config, logger *slog.Logger) {
	inspector := queue.NewInspector(&cfg.Redis)
	defer inspector.Close()

	for _, name := range []string{queue.QueueImports, queue.QueueDefault, queue.QueueReminders} {
		info, err := inspector.GetQueueInfo(name)
		if err != nil {
			// Queues that never received a task do not exist yet.
			continue
		}
		logger.Info("queue backlog", "queue", name, "pending", info.Pending, "retry", info.Retry, "scheduled", info.Scheduled)
	}
}
