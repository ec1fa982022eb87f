package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/quickhabit/habits/internal/domain"
)

// UserService handles the self-service profile of the authenticated user.
type UserService struct {
	users UserStore
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

// Me returns the user's own record.
func (s *UserService) Me(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	return user, nil
}

// UpdateMe applies a partial profile update.
func (s *UserService) UpdateMe(ctx context.Context, userID int64, patch domain.UserPatch) (*domain.User, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	if patch.Email != nil {
		email, err := normalizeEmail(*patch.Email)
		if err != nil {
			return nil, err
		}
		patch.Email = &email
	}
	if patch.TelegramChatID != nil && *patch.TelegramChatID == 0 {
		return nil, domain.NewValidationError("telegram_chat_id", "chat id must be non-zero")
	}

	updated, err := s.users.Update(ctx, patch.Apply(*user))
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return updated, nil
}

// DeleteMe removes the user together with their habits.
func (s *UserService) DeleteMe(ctx context.Context, userID int64) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUnauthorized
		}
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}
