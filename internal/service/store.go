package service

import (
	"context"

	"github.com/quickhabit/habits/internal/domain"
)

// UserStore defines the user data access interface consumed by the services.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user domain.User) (*domain.User, error)
	Update(ctx context.Context, user domain.User) (*domain.User, error)
	FindByProviderID(ctx context.Context, provider domain.AuthProvider, providerID string) (*domain.User, error)
	Delete(ctx context.Context, id int64) error
}

// HabitStore defines the habit data access interface consumed by HabitService.
type HabitStore interface {
	FindByID(ctx context.Context, id int64) (*domain.Habit, error)
	ListByOwner(ctx context.Context, ownerID int64, page domain.Page) ([]domain.Habit, int, error)
	ListPublic(ctx context.Context, page domain.Page) ([]domain.Habit, int, error)
	Create(ctx context.Context, habit domain.Habit) (*domain.Habit, error)
	Update(ctx context.Context, habit domain.Habit) (*domain.Habit, error)
	CountRelatedTo(ctx context.Context, id int64) (int, error)
	Delete(ctx context.Context, id int64) error
}
