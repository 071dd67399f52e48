package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/charmbracelet/log"

	"habitFlowAPI/internal/apperr"
	"habitFlowAPI/internal/settings"
	"habitFlowAPI/storage"
)

var timeOfDayRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// SettingsService persists UI preferences: theme, accent color and
// notification configuration. These are plain per-key records with a
// lifecycle independent from habit data.
type SettingsService struct {
	store  storage.Store
	logger *log.Logger
}

func NewSettingsService(store storage.Store) *SettingsService {
	return &SettingsService{
		store:  store,
		logger: log.With("component", "settings"),
	}
}

func (s *SettingsService) GetTheme(ctx context.Context) (settings.Theme, error) {
	raw, err := s.store.Get(ctx, storage.KeyTheme)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return settings.ThemeSystem, nil
		}
		return "", fmt.Errorf("%w: failed to load theme: %v", apperr.ErrStorage, err)
	}
	theme := settings.Theme(raw)
	if !theme.Valid() {
		return settings.ThemeSystem, nil
	}
	return theme, nil
}

func (s *SettingsService) SetTheme(ctx context.Context, theme settings.Theme) error {
	if !theme.Valid() {
		return apperr.Validationf("unknown theme %q", theme)
	}
	if err := s.store.Set(ctx, storage.KeyTheme, string(theme)); err != nil {
		return fmt.Errorf("%w: failed to persist theme: %v", apperr.ErrStorage, err)
	}
	return nil
}

func (s *SettingsService) GetAccentColor(ctx context.Context) (settings.AccentColor, error) {
	raw, err := s.store.Get(ctx, storage.KeyAccentColor)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return settings.AccentPurple, nil
		}
		return "", fmt.Errorf("%w: failed to load accent color: %v", apperr.ErrStorage, err)
	}
	color := settings.AccentColor(raw)
	if !color.Valid() {
		return settings.AccentPurple, nil
	}
	return color, nil
}

func (s *SettingsService) SetAccentColor(ctx context.Context, color settings.AccentColor) error {
	if !color.Valid() {
		return apperr.Validationf("unknown accent color %q", color)
	}
	if err := s.store.Set(ctx, storage.KeyAccentColor, string(color)); err != nil {
		return fmt.Errorf("%w: failed to persist accent color: %v", apperr.ErrStorage, err)
	}
	return nil
}

// Palette resolves the stored theme and accent color into concrete
// colors.
func (s *SettingsService) Palette(ctx context.Context) (*settings.Palette, error) {
	theme, err := s.GetTheme(ctx)
	if err != nil {
		return nil, err
	}
	color, err := s.GetAccentColor(ctx)
	if err != nil {
		return nil, err
	}
	p := settings.ResolvePalette(theme, color)
	return &p, nil
}

func (s *SettingsService) GetNotificationPreferences(ctx context.Context) (*settings.NotificationPreferences, error) {
	raw, err := s.store.Get(ctx, storage.KeyNotificationSettings)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			prefs := settings.DefaultNotificationPreferences()
			return &prefs, nil
		}
		return nil, fmt.Errorf("%w: failed to load notification settings: %v", apperr.ErrStorage, err)
	}

	prefs := &settings.NotificationPreferences{}
	if err := json.Unmarshal([]byte(raw), prefs); err != nil {
		s.logger.Error("corrupt notification settings, using defaults", "err", err)
		defaults := settings.DefaultNotificationPreferences()
		return &defaults, nil
	}
	return prefs, nil
}

func (s *SettingsService) UpdateNotificationPreferences(ctx context.Context, prefs *settings.NotificationPreferences) error {
	if !timeOfDayRe.MatchString(prefs.DailyReminderTime) {
		return apperr.Validationf("daily reminder time must be HH:MM, got %q", prefs.DailyReminderTime)
	}
	if prefs.WeeklyReportDay < 0 || prefs.WeeklyReportDay > 6 {
		return apperr.Validationf("weekly report day %d out of range 0-6", prefs.WeeklyReportDay)
	}

	raw, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to serialize notification settings: %w", err)
	}
	if err := s.store.Set(ctx, storage.KeyNotificationSettings, string(raw)); err != nil {
		return fmt.Errorf("%w: failed to persist notification settings: %v", apperr.ErrStorage, err)
	}
	return nil
}
