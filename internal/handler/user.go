package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/quickhabit/habits/internal/domain"
	"github.com/quickhabit/habits/internal/service"
)

// UserHandler serves the caller's own profile.
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type updateMeRequest struct {
	Email          *string         `json:"email" validate:"omitempty,max=254"`
	FirstName      *string         `json:"first_name" validate:"omitempty,max=150"`
	LastName       *string         `json:"last_name" validate:"omitempty,max=150"`
	TelegramChatID optional[int64] `json:"telegram_chat_id"`
}

func (r updateMeRequest) patch() domain.UserPatch {
	return domain.UserPatch{
		Email:          r.Email,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		TelegramChatID: r.TelegramChatID.ptr(),
		ClearChatID:    r.TelegramChatID.Null,
	}
}

// Me returns the authenticated user.
func (h *UserHandler) Me(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	user, err := h.users.Me(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	return JSON(c, http.StatusOK, user)
}

// UpdateMe applies a partial update to the authenticated user.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req updateMeRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	user, err := h.users.UpdateMe(c.Request().Context(), userID, req.patch())
	if err != nil {
		return err
	}

	return JSON(c, http.StatusOK, user)
}

// DeleteMe removes the authenticated user and everything they own.
func (h *UserHandler) DeleteMe(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	if err := h.users.DeleteMe(c.Request().Context(), userID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
