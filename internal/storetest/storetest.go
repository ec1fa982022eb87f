// Package storetest provides in-memory implementations of the user and habit
// stores for tests.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quickhabit/habits/internal/domain"
)

// Users is an in-memory user store.
type Users struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]domain.User
}

// NewUsers creates an empty Users store.
func NewUsers() *Users {
	return &Users{nextID: 1, users: make(map[int64]domain.User)}
}

func (f *Users) FindByID(_ context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (f *Users) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *Users) conflict(u domain.User) error {
	for _, other := range f.users {
		if other.ID == u.ID {
			continue
		}
		if strings.EqualFold(other.Email, u.Email) {
			return domain.NewValidationError("email", "user with this email already exists")
		}
		if u.TelegramChatID != nil && other.TelegramChatID != nil && *u.TelegramChatID == *other.TelegramChatID {
			return domain.NewValidationError("telegram_chat_id", "user with this telegram chat id already exists")
		}
		if u.Provider != nil && other.Provider != nil && *u.Provider == *other.Provider &&
			u.ProviderID != nil && other.ProviderID != nil && *u.ProviderID == *other.ProviderID {
			return domain.ErrConflict
		}
	}
	return nil
}

func (f *Users) Create(_ context.Context, u domain.User) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.conflict(u); err != nil {
		return nil, err
	}
	u.ID = f.nextID
	f.nextID++
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.users[u.ID] = u
	return &u, nil
}

func (f *Users) Update(_ context.Context, u domain.User) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[u.ID]; !ok {
		return nil, domain.ErrNotFound
	}
	if err := f.conflict(u); err != nil {
		return nil, err
	}
	u.UpdatedAt = time.Now()
	f.users[u.ID] = u
	return &u, nil
}

func (f *Users) FindByProviderID(_ context.Context, provider domain.AuthProvider, providerID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Provider != nil && u.ProviderID != nil && *u.Provider == provider && *u.ProviderID == providerID {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *Users) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

// Habits is an in-memory habit store. Deleting a habit nulls references to it.
type Habits struct {
	mu     sync.Mutex
	nextID int64
	habits map[int64]domain.Habit
}

// NewHabits creates an empty Habits store.
func NewHabits() *Habits {
	return &Habits{nextID: 1, habits: make(map[int64]domain.Habit)}
}

func (f *Habits) FindByID(_ context.Context, id int64) (*domain.Habit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h, ok := f.habits[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &h, nil
}

func (f *Habits) list(match func(domain.Habit) bool, page domain.Page) ([]domain.Habit, int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all := []domain.Habit{}
	for _, h := range f.habits {
		if match(h) {
			all = append(all, h)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	start := page.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + page.Size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all)
}

func (f *Habits) ListByOwner(_ context.Context, ownerID int64, page domain.Page) ([]domain.Habit, int, error) {
	out, total := f.list(func(h domain.Habit) bool { return h.OwnerID == ownerID }, page)
	return out, total, nil
}

func (f *Habits) ListPublic(_ context.Context, page domain.Page) ([]domain.Habit, int, error) {
	out, total := f.list(func(h domain.Habit) bool { return h.IsPublic }, page)
	return out, total, nil
}

func (f *Habits) Create(_ context.Context, h domain.Habit) (*domain.Habit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h.ID = f.nextID
	f.nextID++
	h.CreatedAt = time.Now()
	h.UpdatedAt = h.CreatedAt
	f.habits[h.ID] = h
	return &h, nil
}

func (f *Habits) Update(_ context.Context, h domain.Habit) (*domain.Habit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.habits[h.ID]; !ok {
		return nil, domain.ErrNotFound
	}
	h.UpdatedAt = time.Now()
	f.habits[h.ID] = h
	return &h, nil
}

func (f *Habits) CountRelatedTo(_ context.Context, id int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, h := range f.habits {
		if h.RelatedHabitID != nil && *h.RelatedHabitID == id {
			n++
		}
	}
	return n, nil
}

func (f *Habits) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.habits[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.habits, id)
	for hid, h := range f.habits {
		if h.RelatedHabitID != nil && *h.RelatedHabitID == id {
			h.RelatedHabitID = nil
			f.habits[hid] = h
		}
	}
	return nil
}
