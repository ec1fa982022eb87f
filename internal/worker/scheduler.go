package worker

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

// SchedulerConfig configures the periodic enqueueing of reminder runs.
type SchedulerConfig struct {
	RedisURL string
	Schedule string
	Location *time.Location
}

// StartScheduler creates and starts an Asynq Scheduler for the reminder task.
// Returns a stop function for graceful shutdown.
func StartScheduler(logger *slog.Logger, cfg SchedulerConfig) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse Redis URL: %w", err)
	}

	location := cfg.Location
	if location == nil {
		location = time.UTC
	}

	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: location,
			LogLevel: asynq.InfoLevel,
			Logger:   &asynqLoggerAdapter{logger: logger},
		},
	)

	entryID, err := scheduler.Register(cfg.Schedule, NewCheckHabitsTask(ScheduleInterval(cfg.Schedule)))
	if err != nil {
		return nil, fmt.Errorf("register reminder schedule: %w", err)
	}

	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start scheduler: %w", err)
	}

	logger.Info(
		"Scheduler started",
		"schedule", cfg.Schedule,
		"timezone", location.String(),
		"entry_id", entryID,
	)

	return func() { scheduler.Shutdown() }, nil
}

// ScheduleInterval extracts the period of an "@every <duration>" spec.
// Cron-style specs fall back to one minute.
func ScheduleInterval(spec string) time.Duration {
	const prefix = "@every "
	if strings.HasPrefix(spec, prefix) {
		if d, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(spec, prefix))); err == nil && d > 0 {
			return d
		}
	}
	return time.Minute
}
