package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quickhabit/habits/internal/domain"
)

// These tests run against a real Postgres when TEST_DATABASE_URL is set.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func mustCreateUser(t *testing.T, repo *UserRepository, chatID *int64) *domain.User {
	t.Helper()

	email := fmt.Sprintf("user-%d@test.com", time.Now().UnixNano())
	user, err := repo.Create(context.Background(), domain.User{Email: email, TelegramChatID: chatID})
	if err != nil {
		t.Fatalf("failed to prepare user: %v", err)
	}
	t.Cleanup(func() { _ = repo.Delete(context.Background(), user.ID) })
	return user
}

func mustCreateHabit(t *testing.T, repo *HabitRepository, ownerID int64, clock string, pleasant bool) *domain.Habit {
	t.Helper()

	ct, err := domain.ParseClockTime(clock)
	if err != nil {
		t.Fatalf("parse clock: %v", err)
	}
	habit, err := repo.Create(context.Background(), domain.Habit{
		OwnerID:       ownerID,
		Place:         "home",
		Time:          ct,
		Action:        "take a bubble bath",
		IsPleasant:    pleasant,
		Frequency:     1,
		ExecutionTime: 10,
	})
	if err != nil {
		t.Fatalf("failed to prepare habit: %v", err)
	}
	return habit
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db)

	user := mustCreateUser(t, users, nil)

	_, err := users.Create(context.Background(), domain.User{Email: user.Email})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "email" {
		t.Fatalf("expected email validation error, got %v", err)
	}
}

func TestUserRepository_ProviderIdentity(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db)
	ctx := context.Background()

	provider := domain.AuthProviderGitHub
	providerID := fmt.Sprintf("%d", time.Now().UnixNano())
	user, err := users.Create(ctx, domain.User{
		Email:      fmt.Sprintf("gh-%s@test.com", providerID),
		Provider:   &provider,
		ProviderID: &providerID,
	})
	if err != nil {
		t.Fatalf("create social user: %v", err)
	}
	t.Cleanup(func() { _ = users.Delete(ctx, user.ID) })

	got, err := users.FindByProviderID(ctx, provider, providerID)
	if err != nil || got.ID != user.ID {
		t.Fatalf("FindByProviderID = %+v, %v; want user %d", got, err, user.ID)
	}

	if _, err := users.FindByProviderID(ctx, domain.AuthProviderGoogle, providerID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for another provider, got %v", err)
	}

	_, err = users.Create(ctx, domain.User{
		Email:      "other-" + user.Email,
		Provider:   &provider,
		ProviderID: &providerID,
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict for a reused identity, got %v", err)
	}
}

func TestHabitRepository_RelatedHabitNullsOnDelete(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db)
	habits := NewHabitRepository(db)
	ctx := context.Background()

	owner := mustCreateUser(t, users, nil)
	pleasant := mustCreateHabit(t, habits, owner.ID, "20:00", true)
	h := mustCreateHabit(t, habits, owner.ID, "21:00", false)

	h.RelatedHabitID = &pleasant.ID
	if _, err := habits.Update(ctx, *h); err != nil {
		t.Fatalf("link related habit: %v", err)
	}

	if n, err := habits.CountRelatedTo(ctx, pleasant.ID); err != nil || n != 1 {
		t.Fatalf("CountRelatedTo = %d, %v; want 1", n, err)
	}

	if err := habits.Delete(ctx, pleasant.ID); err != nil {
		t.Fatalf("delete pleasant habit: %v", err)
	}

	got, err := habits.FindByID(ctx, h.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.RelatedHabitID != nil {
		t.Errorf("expected related habit to be nulled, got %d", *got.RelatedHabitID)
	}
}

func TestHabitRepository_ListCounts(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db)
	habits := NewHabitRepository(db)
	ctx := context.Background()

	owner := mustCreateUser(t, users, nil)
	mustCreateHabit(t, habits, owner.ID, "08:00", false)
	mustCreateHabit(t, habits, owner.ID, "09:00", true)

	list, total, err := habits.ListByOwner(ctx, owner.ID, domain.Page{Number: 1, Size: 1})
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if total != 2 {
		t.Errorf("expected total 2, got %d", total)
	}
	if len(list) != 1 {
		t.Errorf("expected page of 1, got %d", len(list))
	}
}

func TestNotificationRepository_UniquePerDay(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db)
	habits := NewHabitRepository(db)
	ctx := context.Background()

	owner := mustCreateUser(t, users, nil)
	h := mustCreateHabit(t, habits, owner.ID, "08:00", false)

	insert := `INSERT INTO habit_notifications (habit_id, date) VALUES ($1, $2)`
	if _, err := db.ExecContext(ctx, insert, h.ID, "2026-10-18"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := db.ExecContext(ctx, insert, h.ID, "2026-10-18")
	if !isUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestNotificationRepository_ClaimNotification(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db)
	habits := NewHabitRepository(db)
	notifications := NewNotificationRepository(db)
	ctx := context.Background()

	chatID := time.Now().UnixNano()
	owner := mustCreateUser(t, users, &chatID)
	h := mustCreateHabit(t, habits, owner.ID, "00:00", false)
	day := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

	failing := func(context.Context) error { return errors.New("telegram down") }
	if claimed, err := notifications.ClaimNotification(ctx, h.ID, day, failing); err == nil || claimed {
		t.Fatalf("expected failed delivery to not claim, got claimed=%v err=%v", claimed, err)
	}

	calls := 0
	deliver := func(context.Context) error { calls++; return nil }

	claimed, err := notifications.ClaimNotification(ctx, h.ID, day, deliver)
	if err != nil || !claimed {
		t.Fatalf("expected claim after rollback, got claimed=%v err=%v", claimed, err)
	}

	claimed, err = notifications.ClaimNotification(ctx, h.ID, day, deliver)
	if err != nil || claimed {
		t.Fatalf("expected second claim to be refused, got claimed=%v err=%v", claimed, err)
	}
	if calls != 1 {
		t.Errorf("expected 1 delivery, got %d", calls)
	}

	history, err := notifications.ListByHabit(ctx, h.ID)
	if err != nil {
		t.Fatalf("ListByHabit: %v", err)
	}
	if len(history) != 1 || !history[0].Date.Equal(day) {
		t.Errorf("expected a single notification on %v, got %+v", day, history)
	}

	due, err := notifications.DueHabits(ctx, domain.ClockOf(day.Add(time.Minute)))
	if err != nil {
		t.Fatalf("DueHabits: %v", err)
	}
	for _, d := range due {
		if d.ID != h.ID {
			continue
		}
		if d.LastNotified == nil || !d.LastNotified.Equal(day) {
			t.Errorf("expected last notified %v, got %v", day, d.LastNotified)
		}
		if d.ChatID == nil || *d.ChatID != chatID {
			t.Errorf("expected chat id %d, got %v", chatID, d.ChatID)
		}
		return
	}
	t.Fatalf("habit %d not reported as due", h.ID)
}
