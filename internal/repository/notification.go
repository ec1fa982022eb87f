package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quickhabit/habits/internal/domain"
)

// NotificationRepository handles reminder bookkeeping.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// DueHabits returns every habit whose time of day is at or before clock,
// with the owner's chat destination and the date of the latest notification.
func (r *NotificationRepository) DueHabits(ctx context.Context, clock domain.ClockTime) ([]domain.DueHabit, error) {
	due := []domain.DueHabit{}
	err := r.db.SelectContext(ctx, &due,
		`SELECT h.id, h.owner_id, h.place, h.time, h.action, h.is_pleasant, h.related_habit_id,
		        h.frequency, h.reward, h.execution_time, h.is_public, h.created_at, h.updated_at,
		        u.telegram_chat_id,
		        (SELECT MAX(n.date) FROM habit_notifications n WHERE n.habit_id = h.id) AS last_notified
		 FROM habits h
		 JOIN users u ON u.id = h.owner_id
		 WHERE h.time <= $1
		 ORDER BY h.time, h.id`, clock)
	if err != nil {
		return nil, fmt.Errorf("select due habits: %w", err)
	}
	return due, nil
}

// ClaimNotification reserves the (habit, date) row inside a transaction and
// runs deliver while holding it. The row is committed only if deliver
// succeeds. A concurrent claimer blocks on the unique index and then sees the
// committed row, so at most one delivery happens per habit per day.
// It reports false without calling deliver if the row already exists.
// A commit failure after a successful delivery wraps domain.ErrNotRecorded.
func (r *NotificationRepository) ClaimNotification(ctx context.Context, habitID int64, date time.Time, deliver func(context.Context) error) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin claim for habit %d: %w", habitID, err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`INSERT INTO habit_notifications (habit_id, date) VALUES ($1, $2)
		 ON CONFLICT (habit_id, date) DO NOTHING`,
		habitID, date.Format(time.DateOnly))
	if err != nil {
		return false, fmt.Errorf("claim notification for habit %d: %w", habitID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim notification for habit %d: %w", habitID, err)
	}
	if n == 0 {
		return false, nil
	}

	if err := deliver(ctx); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit notification for habit %d: %w: %w", habitID, domain.ErrNotRecorded, err)
	}
	return true, nil
}

// ListByHabit returns the reminders recorded for a habit, newest first.
func (r *NotificationRepository) ListByHabit(ctx context.Context, habitID int64) ([]domain.HabitNotification, error) {
	out := []domain.HabitNotification{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT id, habit_id, date, created_at FROM habit_notifications
		 WHERE habit_id = $1 ORDER BY date DESC`, habitID)
	if err != nil {
		return nil, fmt.Errorf("select notifications of habit %d: %w", habitID, err)
	}
	return out, nil
}
