// Package reminder implements the periodic check that sends habit reminders.
//
// A habit is due once its time of day has passed. It is reminded at most once
// per calendar day and no sooner than Frequency days after the last reminder.
// Delivery and bookkeeping happen per habit, so one failing habit never stops
// the rest of the run.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quickhabit/habits/internal/domain"
	"github.com/quickhabit/habits/internal/notifier"
)

// Store is the data access the reminder run needs.
type Store interface {
	DueHabits(ctx context.Context, clock domain.ClockTime) ([]domain.DueHabit, error)
	ClaimNotification(ctx context.Context, habitID int64, date time.Time, deliver func(context.Context) error) (bool, error)
}

// Notifier delivers a text message to a chat.
type Notifier interface {
	Configured() bool
	Send(ctx context.Context, chatID int64, text string) error
}

// Stats summarises one run.
type Stats struct {
	Due     int
	Sent    int
	Skipped int
	Failed  int

	// Unrecorded counts reminders that were delivered but whose bookkeeping
	// failed. They are included in Sent and may be delivered again.
	Unrecorded int
}

// Reminder sends reminders for due habits.
type Reminder struct {
	store    Store
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
	log      *slog.Logger
}

// Option customises a Reminder.
type Option func(*Reminder)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reminder) { r.now = now }
}

// WithLogger sets the logger used for per-habit outcomes.
func WithLogger(log *slog.Logger) Option {
	return func(r *Reminder) { r.log = log }
}

// New creates a Reminder interpreting habit times in loc.
func New(store Store, n Notifier, loc *time.Location, opts ...Option) *Reminder {
	if loc == nil {
		loc = time.UTC
	}
	r := &Reminder{
		store:    store,
		notifier: n,
		loc:      loc,
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one pass over the due habits. Only failure to load the due
// habits is returned; per-habit failures are logged and counted.
func (r *Reminder) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	if !r.notifier.Configured() {
		r.log.Error("TELEGRAM_BOT_TOKEN isn't set, skipping reminders")
		return stats, nil
	}

	now := r.now().In(r.loc)
	today := CalendarDate(now)

	due, err := r.store.DueHabits(ctx, domain.ClockOf(now))
	if err != nil {
		return stats, fmt.Errorf("load due habits: %w", err)
	}
	stats.Due = len(due)

	for _, d := range due {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if !Eligible(d, now) || d.ChatID == nil {
			stats.Skipped++
			continue
		}

		chatID := *d.ChatID
		text := Message(d.Habit)
		claimed, err := r.store.ClaimNotification(ctx, d.ID, today, func(ctx context.Context) error {
			return r.notifier.Send(ctx, chatID, text)
		})

		var derr *notifier.DeliveryError
		switch {
		case errors.As(err, &derr):
			stats.Failed++
			r.log.Warn("reminder delivery failed, will retry on next run",
				"habit_id", d.ID, "owner_id", d.OwnerID, "error", err)
		case errors.Is(err, domain.ErrNotRecorded):
			stats.Sent++
			stats.Unrecorded++
			r.log.Error("reminder delivered but not recorded, it may be sent again on next run",
				"habit_id", d.ID, "owner_id", d.OwnerID, "chat_id", chatID, "error", err)
		case err != nil:
			stats.Failed++
			r.log.Error("reminder failed", "habit_id", d.ID, "owner_id", d.OwnerID, "error", err)
		case !claimed:
			stats.Skipped++
			r.log.Debug("reminder already sent today", "habit_id", d.ID)
		default:
			stats.Sent++
			r.log.Info("reminder sent", "habit_id", d.ID, "owner_id", d.OwnerID)
		}
	}

	return stats, nil
}

// Eligible reports whether enough calendar days have passed since the last
// reminder. A habit never reminded before is always eligible.
func Eligible(d domain.DueHabit, now time.Time) bool {
	if d.LastNotified == nil {
		return true
	}
	frequency := d.Frequency
	if frequency < domain.MinFrequency {
		frequency = domain.MinFrequency
	}
	return DaysBetween(*d.LastNotified, now) >= frequency
}

// DaysBetween counts calendar days from the date of from to the date of to,
// each taken in its own location.
func DaysBetween(from, to time.Time) int {
	a := CalendarDate(from)
	b := CalendarDate(to)
	return int(b.Sub(a).Hours() / 24)
}

// CalendarDate returns midnight UTC of t's calendar date in t's location.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Message composes the reminder text for a habit.
func Message(h domain.Habit) string {
	return fmt.Sprintf("🔔 Habit Reminder!\n"+
		"Hey, it's time to: %s at %s in %s.\n"+
		"⏳ You have %d seconds to make it.",
		h.Action, h.Time.Short(), h.Place, h.ExecutionTime)
}
