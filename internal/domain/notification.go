package domain

import "time"

// HabitNotification records that a reminder for a habit was delivered on a
// calendar date. At most one exists per (habit, date).
type HabitNotification struct {
	ID        int64     `json:"id" db:"id"`
	HabitID   int64     `json:"habit_id" db:"habit_id"`
	Date      time.Time `json:"date" db:"date"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DueHabit is a habit selected by the reminder run together with the data
// needed to decide whether to send it.
type DueHabit struct {
	Habit
	ChatID       *int64     `db:"telegram_chat_id"`
	LastNotified *time.Time `db:"last_notified"`
}
