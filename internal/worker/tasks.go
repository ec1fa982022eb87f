package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/quickhabit/habits/internal/reminder"
)

// Task type constants
const (
	TaskCheckHabits = "habits:check"
)

// Runner performs one reminder pass.
type Runner interface {
	Run(ctx context.Context) (reminder.Stats, error)
}

// NewCheckHabitsTask builds the periodic reminder task. Uniqueness keeps a
// slow run from overlapping with the next tick.
func NewCheckHabitsTask(interval time.Duration) *asynq.Task {
	if interval <= 0 {
		interval = time.Minute
	}
	return asynq.NewTask(
		TaskCheckHabits,
		nil, // handler queries all due habits
		asynq.MaxRetry(0),
		asynq.Timeout(interval*5),
		asynq.Unique(interval),
		asynq.Retention(time.Hour),
	)
}

// handleCheckHabits runs the reminder pass for a habits:check task.
func handleCheckHabits(logger *slog.Logger, runner Runner) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		start := time.Now()

		stats, err := runner.Run(ctx)
		if err != nil {
			return err
		}

		logger.Info(
			"Reminder run completed",
			"due", stats.Due,
			"sent", stats.Sent,
			"skipped", stats.Skipped,
			"failed", stats.Failed,
			"unrecorded", stats.Unrecorded,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}
}
