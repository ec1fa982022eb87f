package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/quickhabit/habits/internal/domain"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// HabitService applies ownership and validation rules to habit operations.
type HabitService struct {
	habits HabitStore
}

// NewHabitService creates a new HabitService.
func NewHabitService(habits HabitStore) *HabitService {
	return &HabitService{habits: habits}
}

// NormalizePage clamps page parameters to sane bounds.
func NormalizePage(number, size int) domain.Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return domain.Page{Number: number, Size: size}
}

// List returns the caller's own habits.
func (s *HabitService) List(ctx context.Context, userID int64, page domain.Page) ([]domain.Habit, int, error) {
	return s.habits.ListByOwner(ctx, userID, page)
}

// ListPublic returns habits any user flagged public.
func (s *HabitService) ListPublic(ctx context.Context, page domain.Page) ([]domain.Habit, int, error) {
	return s.habits.ListPublic(ctx, page)
}

// Create validates and stores a new habit owned by userID.
func (s *HabitService) Create(ctx context.Context, userID int64, habit domain.Habit) (*domain.Habit, error) {
	habit.ID = 0
	habit.OwnerID = userID

	if err := s.validate(ctx, habit); err != nil {
		return nil, err
	}

	created, err := s.habits.Create(ctx, habit)
	if err != nil {
		return nil, fmt.Errorf("create habit: %w", err)
	}
	return created, nil
}

// Get returns a habit owned by userID.
func (s *HabitService) Get(ctx context.Context, userID, habitID int64) (*domain.Habit, error) {
	habit, err := s.habits.FindByID(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if habit.OwnerID != userID {
		return nil, domain.ErrForbidden
	}
	return habit, nil
}

// Update applies a partial update to a habit owned by userID. The merged
// habit must satisfy the same rules as a new one.
func (s *HabitService) Update(ctx context.Context, userID, habitID int64, patch domain.HabitPatch) (*domain.Habit, error) {
	habit, err := s.Get(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}

	merged := patch.Apply(*habit)
	if err := s.validate(ctx, merged); err != nil {
		return nil, err
	}

	// Other habits may only relate to a pleasant habit.
	if habit.IsPleasant && !merged.IsPleasant {
		n, err := s.habits.CountRelatedTo(ctx, habit.ID)
		if err != nil {
			return nil, fmt.Errorf("count related habits: %w", err)
		}
		if n > 0 {
			return nil, domain.NewValidationError("is_pleasant",
				fmt.Sprintf("habit is the related habit of %d other habit(s)", n))
		}
	}

	updated, err := s.habits.Update(ctx, merged)
	if err != nil {
		return nil, fmt.Errorf("update habit: %w", err)
	}
	return updated, nil
}

// Delete removes a habit owned by userID.
func (s *HabitService) Delete(ctx context.Context, userID, habitID int64) error {
	if _, err := s.Get(ctx, userID, habitID); err != nil {
		return err
	}
	return s.habits.Delete(ctx, habitID)
}

func (s *HabitService) validate(ctx context.Context, habit domain.Habit) error {
	var related *domain.Habit
	if habit.RelatedHabitID != nil {
		r, err := s.habits.FindByID(ctx, *habit.RelatedHabitID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return domain.NewValidationError("related_habit",
				fmt.Sprintf("habit %d does not exist", *habit.RelatedHabitID))
		case err != nil:
			return fmt.Errorf("load related habit: %w", err)
		}
		related = r
	}
	return habit.Validate(related)
}
