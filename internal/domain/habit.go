package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	MinFrequency     = 1
	MaxFrequency     = 7
	MinExecutionTime = 0
	MaxExecutionTime = 120
)

// Habit represents a recurring action a user wants to build.
type Habit struct {
	ID             int64     `json:"id" db:"id"`
	OwnerID        int64     `json:"owner_id" db:"owner_id"`
	Place          string    `json:"place" db:"place"`
	Time           ClockTime `json:"time" db:"time"`
	Action         string    `json:"action" db:"action"`
	IsPleasant     bool      `json:"is_pleasant" db:"is_pleasant"`
	RelatedHabitID *int64    `json:"related_habit" db:"related_habit_id"`
	Frequency      int       `json:"frequency" db:"frequency"`
	Reward         *string   `json:"reward" db:"reward"`
	ExecutionTime  int       `json:"execution_time" db:"execution_time"`
	IsPublic       bool      `json:"is_public" db:"is_public"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

func (h Habit) String() string {
	return fmt.Sprintf("%s at %s at %s", h.Action, h.Place, h.Time)
}

// HasReward reports whether a non-empty reward is set.
func (h Habit) HasReward() bool {
	return h.Reward != nil && *h.Reward != ""
}

// Validate checks the habit's field ranges and its reward/related-habit
// combination. related is the habit referenced by RelatedHabitID, or nil.
func (h Habit) Validate(related *Habit) error {
	var errs ValidationErrors

	if h.Frequency < MinFrequency || h.Frequency > MaxFrequency {
		errs = append(errs, ValidationError{
			Field:   "frequency",
			Message: fmt.Sprintf("execution frequency must be between %d and %d days", MinFrequency, MaxFrequency),
		})
	}
	if h.ExecutionTime < MinExecutionTime || h.ExecutionTime > MaxExecutionTime {
		errs = append(errs, ValidationError{
			Field:   "execution_time",
			Message: fmt.Sprintf("execution time must be between %d and %d seconds", MinExecutionTime, MaxExecutionTime),
		})
	}

	hasRelated := h.RelatedHabitID != nil
	switch {
	case hasRelated && h.HasReward():
		errs = append(errs, ValidationError{
			Field:   "reward",
			Message: "cannot set both a related habit and a reward",
		})
	case h.IsPleasant && (hasRelated || h.HasReward()):
		errs = append(errs, ValidationError{
			Field:   "is_pleasant",
			Message: "a pleasant habit cannot have a related habit or a reward",
		})
	case hasRelated && (related == nil || !related.IsPleasant):
		errs = append(errs, ValidationError{
			Field:   "related_habit",
			Message: "related habit must be a pleasant habit",
		})
	}

	if hasRelated && h.ID != 0 && *h.RelatedHabitID == h.ID {
		errs = append(errs, ValidationError{
			Field:   "related_habit",
			Message: "a habit cannot be related to itself",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// HabitPatch holds the fields of a partial habit update. Nil fields are left
// untouched; the Clear flags null out the nullable references.
type HabitPatch struct {
	Place          *string
	Time           *ClockTime
	Action         *string
	IsPleasant     *bool
	RelatedHabitID *int64
	ClearRelated   bool
	Frequency      *int
	Reward         *string
	ClearReward    bool
	ExecutionTime  *int
	IsPublic       *bool
}

// Apply returns a copy of h with the patch applied.
func (p HabitPatch) Apply(h Habit) Habit {
	out := h
	if p.Place != nil {
		out.Place = *p.Place
	}
	if p.Time != nil {
		out.Time = *p.Time
	}
	if p.Action != nil {
		out.Action = *p.Action
	}
	if p.IsPleasant != nil {
		out.IsPleasant = *p.IsPleasant
	}
	if p.ClearRelated {
		out.RelatedHabitID = nil
	} else if p.RelatedHabitID != nil {
		id := *p.RelatedHabitID
		out.RelatedHabitID = &id
	}
	if p.Frequency != nil {
		out.Frequency = *p.Frequency
	}
	if p.ClearReward {
		out.Reward = nil
	} else if p.Reward != nil {
		r := *p.Reward
		out.Reward = &r
	}
	if p.ExecutionTime != nil {
		out.ExecutionTime = *p.ExecutionTime
	}
	if p.IsPublic != nil {
		out.IsPublic = *p.IsPublic
	}
	return out
}

// Page describes a page-based slice of a listing.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows preceding the page.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// ClockTime is a time of day with second precision.
type ClockTime struct {
	seconds int
}

// NewClockTime builds a ClockTime, rejecting out-of-range components.
func NewClockTime(hour, minute, second int) (ClockTime, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return ClockTime{}, fmt.Errorf("%w: time %02d:%02d:%02d out of range", ErrInvalidInput, hour, minute, second)
	}
	return ClockTime{seconds: hour*3600 + minute*60 + second}, nil
}

// ClockOf returns the time-of-day component of t in t's location.
func ClockOf(t time.Time) ClockTime {
	h, m, s := t.Clock()
	return ClockTime{seconds: h*3600 + m*60 + s}
}

// ParseClockTime accepts "HH:MM" or "HH:MM:SS".
func ParseClockTime(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockOf(t), nil
		}
	}
	// Postgres may render TIME with fractional seconds.
	if t, err := time.Parse("15:04:05.999999", s); err == nil {
		return ClockOf(t), nil
	}
	return ClockTime{}, fmt.Errorf("%w: invalid time of day %q", ErrInvalidInput, s)
}

func (c ClockTime) Hour() int   { return c.seconds / 3600 }
func (c ClockTime) Minute() int { return c.seconds % 3600 / 60 }
func (c ClockTime) Second() int { return c.seconds % 60 }

// After reports whether c is strictly later in the day than o.
func (c ClockTime) After(o ClockTime) bool {
	return c.seconds > o.seconds
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour(), c.Minute(), c.Second())
}

// Short renders the time as HH:MM.
func (c ClockTime) Short() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: time must be a string", ErrInvalidInput)
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Value implements driver.Valuer.
func (c ClockTime) Value() (driver.Value, error) {
	return c.String(), nil
}

// Scan implements sql.Scanner.
func (c *ClockTime) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseClockTime(v)
		if err != nil {
			return err
		}
		*c = parsed
	case []byte:
		parsed, err := ParseClockTime(string(v))
		if err != nil {
			return err
		}
		*c = parsed
	case time.Time:
		*c = ClockOf(v)
	default:
		return fmt.Errorf("scan clock time: unsupported type %T", src)
	}
	return nil
}
