package calendar

import "time"

type CalendarDay struct {
	Date      time.Time `json:"date"`
	Completed bool      `json:"completed"`
	IsToday   bool      `json:"isToday"`
}

type CalendarResponse struct {
	Year  int            `json:"year"`
	Month int            `json:"month"`
	Days  []*CalendarDay `json:"days"`
}
