package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"habitFlowAPI/internal/settings"
	"habitFlowAPI/services"
)

type SettingsHandler struct {
	settingsService *services.SettingsService
}

func NewSettingsHandler(settingsService *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
	}
}

func (h *SettingsHandler) GetAppearance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	theme, err := h.settingsService.GetTheme(ctx)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	accent, err := h.settingsService.GetAccentColor(ctx)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	palette, err := h.settingsService.Palette(ctx)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"theme":       theme,
		"accentColor": accent,
		"palette":     palette,
	})
}

func (h *SettingsHandler) UpdateAppearance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req struct {
		Theme       *settings.Theme       `json:"theme,omitempty"`
		AccentColor *settings.AccentColor `json:"accentColor,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Theme != nil {
		if err := h.settingsService.SetTheme(ctx, *req.Theme); err != nil {
			respondWithServiceError(w, err)
			return
		}
	}
	if req.AccentColor != nil {
		if err := h.settingsService.SetAccentColor(ctx, *req.AccentColor); err != nil {
			respondWithServiceError(w, err)
			return
		}
	}

	h.GetAppearance(w, r)
}

func (h *SettingsHandler) GetNotificationPreferences(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	prefs, err := h.settingsService.GetNotificationPreferences(ctx)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, prefs)
}

func (h *SettingsHandler) UpdateNotificationPreferences(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var prefs settings.NotificationPreferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.settingsService.UpdateNotificationPreferences(ctx, &prefs); err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, prefs)
}
