package settings

// Theme and AccentColor are process-wide UI preferences with a lifecycle
// independent from habit data.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

type AccentColor string

const (
	AccentPurple AccentColor = "purple"
	AccentBlue   AccentColor = "blue"
	AccentGreen  AccentColor = "green"
	AccentOrange AccentColor = "orange"
	AccentPink   AccentColor = "pink"
)

func (c AccentColor) Valid() bool {
	switch c {
	case AccentPurple, AccentBlue, AccentGreen, AccentOrange, AccentPink:
		return true
	}
	return false
}

// NotificationPreferences is configuration only. Delivery is handled by
// an external collaborator, not by this service.
type NotificationPreferences struct {
	Enabled           bool   `json:"enabled"`
	DailyReminder     bool   `json:"dailyReminder"`
	DailyReminderTime string `json:"dailyReminderTime"` // "HH:MM"
	WeeklyReport      bool   `json:"weeklyReport"`
	WeeklyReportDay   int    `json:"weeklyReportDay"` // 0-6, Sunday = 0
}

// DefaultNotificationPreferences mirrors the client defaults: reminders
// configured but delivery disabled until the user opts in.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		Enabled:           false,
		DailyReminder:     true,
		DailyReminderTime: "20:00",
		WeeklyReport:      true,
		WeeklyReportDay:   0,
	}
}

// Palette is the resolved color set for a theme + accent combination.
type Palette struct {
	Primary      string `json:"primary"`
	Background   string `json:"background"`
	Card         string `json:"card"`
	Text         string `json:"text"`
	Border       string `json:"border"`
	Notification string `json:"notification"`
	Success      string `json:"success"`
	Warning      string `json:"warning"`
	Error        string `json:"error"`
}

var accentHex = map[AccentColor]string{
	AccentPurple: "#6200ee",
	AccentBlue:   "#2196f3",
	AccentGreen:  "#4caf50",
	AccentOrange: "#ff9800",
	AccentPink:   "#e91e63",
}

// ResolvePalette returns the light or dark palette for the given
// preferences. Theme "system" resolves to light; the server has no
// device color scheme to consult.
func ResolvePalette(theme Theme, accent AccentColor) Palette {
	p := Palette{
		Primary:      accentHex[accent],
		Background:   "#ffffff",
		Card:         "#f2f2f2",
		Text:         "#000000",
		Border:       "#e0e0e0",
		Notification: "#f50057",
		Success:      "#4caf50",
		Warning:      "#ff9800",
		Error:        "#f44336",
	}
	if theme == ThemeDark {
		p.Background = "#121212"
		p.Card = "#1e1e1e"
		p.Text = "#ffffff"
		p.Border = "#2c2c2c"
	}
	return p
}
