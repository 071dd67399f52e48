package helpers

import (
	"context"
	"net/http"
	"testing"

	"habitFlowAPI/internal/user"
	"habitFlowAPI/middleware"
	"habitFlowAPI/services"
	"habitFlowAPI/storage"
)

// TestSigningKey signs session tokens in tests.
var TestSigningKey = []byte("test-signing-key-for-testing-only")

// Env bundles the store and services wired the same way main does.
type Env struct {
	Store    storage.Store
	Auth     *services.AuthService
	Habits   *services.HabitService
	Settings *services.SettingsService
}

// SetupEnv builds a full service stack over an in-memory store.
func SetupEnv(t *testing.T) *Env {
	t.Helper()

	store := storage.NewMemoryStore()
	return &Env{
		Store:    store,
		Auth:     services.NewAuthService(store, TestSigningKey),
		Habits:   services.NewHabitService(store),
		Settings: services.NewSettingsService(store),
	}
}

// SignIn starts a mock session and returns it.
func (e *Env) SignIn(t *testing.T, email string) *user.SessionResponse {
	t.Helper()

	session, err := e.Auth.SignIn(context.Background(), &user.SignInRequest{
		Email:    email,
		Password: "hunter2",
	})
	if err != nil {
		t.Fatalf("Failed to sign in: %v", err)
	}
	return session
}

// Authed stamps the request context the way SessionAuthMiddleware does.
func Authed(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
	return r.WithContext(ctx)
}
