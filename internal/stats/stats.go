package stats

// WeeklyStats is the trailing-7-day completion summary across all of a
// user's habits. Monthly habits never add to Total; the expected count
// has no notion of a month boundary inside a 7-day window.
type WeeklyStats struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// HabitStats is the per-habit read-side summary.
type HabitStats struct {
	HabitID          string `json:"habitId"`
	CurrentStreak    int    `json:"currentStreak"`
	LongestStreak    int    `json:"longestStreak"`
	TotalCompletions int    `json:"totalCompletions"`
	CompletedToday   bool   `json:"completedToday"`
}
