package habit

import (
	"time"

	"habitFlowAPI/internal/apperr"
)

// Frequency is the scheduling rule deciding which calendar days a habit
// is due.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyCustom  Frequency = "custom"
)

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyCustom:
		return true
	}
	return false
}

type Reminder struct {
	ID      string `json:"id"`
	HabitID string `json:"habitId"`
	Time    string `json:"time"` // 24-hour "HH:MM"
	Days    []int  `json:"days"` // 0 = Sunday ... 6 = Saturday
	Enabled bool   `json:"enabled"`
}

type Completion struct {
	ID          string    `json:"id"`
	HabitID     string    `json:"habitId"`
	CompletedAt time.Time `json:"completedAt"`
}

// Habit is one user-defined recurring task. Completions are always
// appended in chronological order; the streak engine depends on that.
type Habit struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Frequency   Frequency    `json:"frequency"`
	CustomDays  []int        `json:"customDays,omitempty"` // only when frequency is custom
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Color       string       `json:"color"`
	Icon        string       `json:"icon"`
	Reminders   []Reminder   `json:"reminders"`
	Streak      int          `json:"streak"`
	Completions []Completion `json:"completions"`
}

// ValidateSchedule checks the frequency/customDays pairing shared by
// create and update.
func ValidateSchedule(freq Frequency, customDays []int) error {
	if !freq.Valid() {
		return apperr.Validationf("unknown frequency %q", freq)
	}
	if freq == FrequencyCustom && len(customDays) == 0 {
		return apperr.Validationf("custom frequency requires at least one custom day")
	}
	for _, d := range customDays {
		if d < 0 || d > 6 {
			return apperr.Validationf("custom day %d out of range 0-6", d)
		}
	}
	return nil
}
