package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quickhabit/habits/internal/config"
	"github.com/quickhabit/habits/internal/handler"
	"github.com/quickhabit/habits/internal/logger"
	"github.com/quickhabit/habits/internal/notifier"
	"github.com/quickhabit/habits/internal/reminder"
	"github.com/quickhabit/habits/internal/repository"
	"github.com/quickhabit/habits/internal/service"
	"github.com/quickhabit/habits/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	slog.Info("database connected")

	if err := repository.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpt)
	defer rdb.Close()

	userRepo := repository.NewUserRepository(db)
	habitRepo := repository.NewHabitRepository(db)

	authSvc := service.NewAuthService(userRepo, service.AuthConfig{
		GoogleClientID:     cfg.GoogleClientID,
		GoogleClientSecret: cfg.GoogleClientSecret,
		GitHubClientID:     cfg.GitHubClientID,
		GitHubClientSecret: cfg.GitHubClientSecret,
		JWTSecret:          cfg.JWTSecret,
		FrontendURL:        cfg.FrontendURL,
		AccessTokenTTL:     cfg.AccessTokenTTL,
		RefreshTokenTTL:    cfg.RefreshTokenTTL,
	})

	e := handler.NewRouter(handler.RouterConfig{
		Logger:        log,
		Authenticator: authSvc,
		AllowOrigins:  []string{cfg.FrontendURL},
	}, handler.Handlers{
		Auth:   handler.NewAuthHandler(authSvc),
		Users:  handler.NewUserHandler(service.NewUserService(userRepo)),
		Habits: handler.NewHabitHandler(service.NewHabitService(habitRepo)),
		Health: handler.NewHealthHandler(db, rdb),
	})

	if cfg.EmbeddedWorker {
		rem := reminder.New(
			repository.NewNotificationRepository(db),
			notifier.NewClient(cfg.TelegramAPIURL, cfg.TelegramBotToken),
			cfg.Location(),
			reminder.WithLogger(log.With("component", "reminder")),
		)

		stopWorker, err := worker.Start(log.With("component", "worker"), cfg.RedisURL, rem)
		if err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
		defer stopWorker()

		stopScheduler, err := worker.StartScheduler(log.With("component", "scheduler"), worker.SchedulerConfig{
			RedisURL: cfg.RedisURL,
			Schedule: cfg.ReminderSchedule,
			Location: cfg.Location(),
		})
		if err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer stopScheduler()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "embedded_worker", cfg.EmbeddedWorker)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
