package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/quickhabit/habits/internal/domain"
)

const habitColumns = `id, owner_id, place, time, action, is_pleasant, related_habit_id,
	frequency, reward, execution_time, is_public, created_at, updated_at`

// HabitRepository handles habit data access operations.
type HabitRepository struct {
	db *sqlx.DB
}

// NewHabitRepository creates a new HabitRepository.
func NewHabitRepository(db *sqlx.DB) *HabitRepository {
	return &HabitRepository{db: db}
}

// FindByID retrieves a habit by its ID regardless of owner.
func (r *HabitRepository) FindByID(ctx context.Context, id int64) (*domain.Habit, error) {
	var habit domain.Habit
	err := r.db.GetContext(ctx, &habit,
		`SELECT `+habitColumns+` FROM habits WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find habit by id %d: %w", id, err)
	}
	return &habit, nil
}

// ListByOwner returns one page of the owner's habits and the total count.
func (r *HabitRepository) ListByOwner(ctx context.Context, ownerID int64, page domain.Page) ([]domain.Habit, int, error) {
	return r.list(ctx, `owner_id = $1`, ownerID, page)
}

// ListPublic returns one page of habits flagged public and the total count.
func (r *HabitRepository) ListPublic(ctx context.Context, page domain.Page) ([]domain.Habit, int, error) {
	return r.list(ctx, `is_public = $1`, true, page)
}

func (r *HabitRepository) list(ctx context.Context, where string, arg any, page domain.Page) ([]domain.Habit, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM habits WHERE `+where, arg); err != nil {
		return nil, 0, fmt.Errorf("count habits: %w", err)
	}

	habits := []domain.Habit{}
	err := r.db.SelectContext(ctx, &habits,
		`SELECT `+habitColumns+` FROM habits WHERE `+where+`
		 ORDER BY id
		 LIMIT $2 OFFSET $3`,
		arg, page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list habits: %w", err)
	}
	return habits, total, nil
}

// Create inserts a new habit and returns the stored row.
func (r *HabitRepository) Create(ctx context.Context, h domain.Habit) (*domain.Habit, error) {
	var result domain.Habit
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO habits (owner_id, place, time, action, is_pleasant, related_habit_id,
		                     frequency, reward, execution_time, is_public)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+habitColumns,
		h.OwnerID, h.Place, h.Time, h.Action, h.IsPleasant, h.RelatedHabitID,
		h.Frequency, h.Reward, h.ExecutionTime, h.IsPublic,
	).StructScan(&result)
	if err != nil {
		return nil, fmt.Errorf("create habit: %w", err)
	}
	return &result, nil
}

// Update overwrites the mutable fields of a habit.
func (r *HabitRepository) Update(ctx context.Context, h domain.Habit) (*domain.Habit, error) {
	var result domain.Habit
	err := r.db.QueryRowxContext(ctx,
		`UPDATE habits
		 SET place = $2, time = $3, action = $4, is_pleasant = $5, related_habit_id = $6,
		     frequency = $7, reward = $8, execution_time = $9, is_public = $10, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+habitColumns,
		h.ID, h.Place, h.Time, h.Action, h.IsPleasant, h.RelatedHabitID,
		h.Frequency, h.Reward, h.ExecutionTime, h.IsPublic,
	).StructScan(&result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update habit %d: %w", h.ID, err)
	}
	return &result, nil
}

// CountRelatedTo counts the habits that use id as their related habit.
func (r *HabitRepository) CountRelatedTo(ctx context.Context, id int64) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM habits WHERE related_habit_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count habits related to %d: %w", id, err)
	}
	return n, nil
}

// Delete removes a habit. Habits relating to it keep existing with the link nulled.
func (r *HabitRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM habits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete habit %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete habit %d: %w", id, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
