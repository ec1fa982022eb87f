package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/quickhabit/habits/internal/config"
	"github.com/quickhabit/habits/internal/logger"
	"github.com/quickhabit/habits/internal/notifier"
	"github.com/quickhabit/habits/internal/reminder"
	"github.com/quickhabit/habits/internal/repository"
	"github.com/quickhabit/habits/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	db, err := repository.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	rem := reminder.New(
		repository.NewNotificationRepository(db),
		notifier.NewClient(cfg.TelegramAPIURL, cfg.TelegramBotToken),
		cfg.Location(),
		reminder.WithLogger(log.With("component", "reminder")),
	)

	stopScheduler, err := worker.StartScheduler(log.With("component", "scheduler"), worker.SchedulerConfig{
		RedisURL: cfg.RedisURL,
		Schedule: cfg.ReminderSchedule,
		Location: cfg.Location(),
	})
	if err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer stopScheduler()

	// Blocks until SIGINT or SIGTERM.
	return worker.Run(log.With("component", "worker"), cfg.RedisURL, rem)
}
