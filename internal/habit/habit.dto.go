package habit

type CreateHabitRequest struct {
	Name        string     `json:"name" validate:"required"`
	Description string     `json:"description,omitempty"`
	Frequency   Frequency  `json:"frequency" validate:"required"`
	CustomDays  []int      `json:"customDays,omitempty"`
	Color       string     `json:"color,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	Reminders   []Reminder `json:"reminders,omitempty"`
}

// UpdateHabitRequest is a partial update: nil fields are left untouched.
type UpdateHabitRequest struct {
	Name        *string     `json:"name,omitempty"`
	Description *string     `json:"description,omitempty"`
	Frequency   *Frequency  `json:"frequency,omitempty"`
	CustomDays  *[]int      `json:"customDays,omitempty"`
	Color       *string     `json:"color,omitempty"`
	Icon        *string     `json:"icon,omitempty"`
	Reminders   *[]Reminder `json:"reminders,omitempty"`
}
