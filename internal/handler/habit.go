package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/quickhabit/habits/internal/domain"
	"github.com/quickhabit/habits/internal/service"
)

// HabitHandler serves the habit endpoints.
type HabitHandler struct {
	habits *service.HabitService
}

// NewHabitHandler creates a new HabitHandler.
func NewHabitHandler(habits *service.HabitService) *HabitHandler {
	return &HabitHandler{habits: habits}
}

type createHabitRequest struct {
	Place         string            `json:"place" validate:"required,max=255"`
	Time          *domain.ClockTime `json:"time" validate:"required"`
	Action        string            `json:"action" validate:"required,max=255"`
	IsPleasant    bool              `json:"is_pleasant"`
	RelatedHabit  *int64            `json:"related_habit"`
	Frequency     *int              `json:"frequency" validate:"omitempty,min=1,max=7"`
	Reward        *string           `json:"reward" validate:"omitempty,max=255"`
	ExecutionTime *int              `json:"execution_time" validate:"required,min=0,max=120"`
	IsPublic      bool              `json:"is_public"`
}

func (r createHabitRequest) habit() domain.Habit {
	frequency := domain.MinFrequency
	if r.Frequency != nil {
		frequency = *r.Frequency
	}
	reward := r.Reward
	if reward != nil && *reward == "" {
		reward = nil
	}
	return domain.Habit{
		Place:          r.Place,
		Time:           *r.Time,
		Action:         r.Action,
		IsPleasant:     r.IsPleasant,
		RelatedHabitID: r.RelatedHabit,
		Frequency:      frequency,
		Reward:         reward,
		ExecutionTime:  *r.ExecutionTime,
		IsPublic:       r.IsPublic,
	}
}

type updateHabitRequest struct {
	Place         optional[string]           `json:"place"`
	Time          optional[domain.ClockTime] `json:"time"`
	Action        optional[string]           `json:"action"`
	IsPleasant    optional[bool]             `json:"is_pleasant"`
	RelatedHabit  optional[int64]            `json:"related_habit"`
	Frequency     optional[int]              `json:"frequency"`
	Reward        optional[string]           `json:"reward"`
	ExecutionTime optional[int]              `json:"execution_time"`
	IsPublic      optional[bool]             `json:"is_public"`
}

func (r updateHabitRequest) patch() (domain.HabitPatch, error) {
	var errs domain.ValidationErrors
	notNull := func(field string, null bool) {
		if null {
			errs = append(errs, domain.ValidationError{Field: field, Message: "this field may not be null"})
		}
	}
	notNull("place", r.Place.Null)
	notNull("time", r.Time.Null)
	notNull("action", r.Action.Null)
	notNull("is_pleasant", r.IsPleasant.Null)
	notNull("frequency", r.Frequency.Null)
	notNull("execution_time", r.ExecutionTime.Null)
	notNull("is_public", r.IsPublic.Null)
	if r.Place.Set && !r.Place.Null && r.Place.Value == "" {
		errs = append(errs, domain.ValidationError{Field: "place", Message: "this field may not be blank"})
	}
	if r.Action.Set && !r.Action.Null && r.Action.Value == "" {
		errs = append(errs, domain.ValidationError{Field: "action", Message: "this field may not be blank"})
	}
	if len(errs) > 0 {
		return domain.HabitPatch{}, errs
	}

	return domain.HabitPatch{
		Place:          r.Place.ptr(),
		Time:           r.Time.ptr(),
		Action:         r.Action.ptr(),
		IsPleasant:     r.IsPleasant.ptr(),
		RelatedHabitID: r.RelatedHabit.ptr(),
		ClearRelated:   r.RelatedHabit.Null,
		Frequency:      r.Frequency.ptr(),
		Reward:         r.Reward.ptr(),
		ClearReward:    r.Reward.Null || (r.Reward.Set && r.Reward.Value == ""),
		ExecutionTime:  r.ExecutionTime.ptr(),
		IsPublic:       r.IsPublic.ptr(),
	}, nil
}

// List returns the caller's habits.
func (h *HabitHandler) List(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	page := pageParams(c)
	habits, count, err := h.habits.List(c.Request().Context(), userID, page)
	if err != nil {
		return err
	}

	return JSONList(c, http.StatusOK, habits, pageMeta(page, count))
}

// ListPublic returns habits shared by any user.
func (h *HabitHandler) ListPublic(c echo.Context) error {
	if _, err := currentUser(c); err != nil {
		return err
	}

	page := pageParams(c)
	habits, count, err := h.habits.ListPublic(c.Request().Context(), page)
	if err != nil {
		return err
	}

	return JSONList(c, http.StatusOK, habits, pageMeta(page, count))
}

// Create stores a new habit owned by the caller.
func (h *HabitHandler) Create(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req createHabitRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	habit, err := h.habits.Create(c.Request().Context(), userID, req.habit())
	if err != nil {
		return err
	}

	return JSON(c, http.StatusCreated, habit)
}

// Get returns one of the caller's habits.
func (h *HabitHandler) Get(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	habit, err := h.habits.Get(c.Request().Context(), userID, id)
	if err != nil {
		return err
	}

	return JSON(c, http.StatusOK, habit)
}

// Update applies a partial update to one of the caller's habits.
func (h *HabitHandler) Update(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req updateHabitRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	patch, err := req.patch()
	if err != nil {
		return err
	}

	habit, err := h.habits.Update(c.Request().Context(), userID, id, patch)
	if err != nil {
		return err
	}

	return JSON(c, http.StatusOK, habit)
}

// Delete removes one of the caller's habits.
func (h *HabitHandler) Delete(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	if err := h.habits.Delete(c.Request().Context(), userID, id); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
