package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quickhabit/habits/internal/config"
	"github.com/quickhabit/habits/internal/logger"
	"github.com/quickhabit/habits/internal/notifier"
	"github.com/quickhabit/habits/internal/reminder"
	"github.com/quickhabit/habits/internal/repository"
	"github.com/quickhabit/habits/internal/service"
)

// App carries the shared dependencies of every command.
type App struct {
	cfg config.Config
	db  *sqlx.DB
	log *slog.Logger
}

func newApp(level string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(level, cfg.LogFormat)
	slog.SetDefault(log)

	db, err := repository.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	return &App{cfg: cfg, db: db, log: log}, nil
}

func (a *App) Close() {
	a.db.Close()
}

type MigrateUpCmd struct{}

func (c *MigrateUpCmd) Run(app *App) error {
	return repository.Migrate(app.db)
}

type MigrateDownCmd struct {
	Steps int `help:"Number of migrations to roll back." default:"1"`
}

func (c *MigrateDownCmd) Run(app *App) error {
	return repository.Rollback(app.db, c.Steps)
}

type RemindCmd struct{}

func (c *RemindCmd) Run(app *App) error {
	rem := reminder.New(
		repository.NewNotificationRepository(app.db),
		notifier.NewClient(app.cfg.TelegramAPIURL, app.cfg.TelegramBotToken),
		app.cfg.Location(),
		reminder.WithLogger(app.log),
	)

	stats, err := rem.Run(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "due=%d sent=%d skipped=%d failed=%d unrecorded=%d\n", stats.Due, stats.Sent, stats.Skipped, stats.Failed, stats.Unrecorded)
	return nil
}

type NotificationsCmd struct {
	Habit int64 `arg:"" help:"Habit id."`
}

func (c *NotificationsCmd) Run(app *App) error {
	history, err := repository.NewNotificationRepository(app.db).ListByHabit(context.Background(), c.Habit)
	if err != nil {
		return err
	}
	for _, n := range history {
		fmt.Fprintf(os.Stdout, "%s\tsent at %s\n", n.Date.Format(time.DateOnly), n.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

type CreateuserCmd struct {
	Email    string `help:"Account email." required:""`
	Password string `help:"Account password." required:"" env:"HABITCTL_PASSWORD"`
}

func (c *CreateuserCmd) Run(app *App) error {
	auth := service.NewAuthService(repository.NewUserRepository(app.db), service.AuthConfig{
		JWTSecret: app.cfg.JWTSecret,
	})

	user, err := auth.Register(context.Background(), c.Email, c.Password)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "created user %d (%s)\n", user.ID, user.Email)
	return nil
}
