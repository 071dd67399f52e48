package main

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"habitFlowAPI/handlers"
	"habitFlowAPI/middleware"
	"habitFlowAPI/services"
	"habitFlowAPI/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found")
	}
	if lvl, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	signingKey := os.Getenv("AUTH_SIGNING_KEY")
	if signingKey == "" {
		// Sessions are mocked and local; a generated key only means
		// tokens do not survive a restart.
		signingKey = "habitflow-dev-signing-key"
		log.Warn("AUTH_SIGNING_KEY not set, using the development key")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := storage.Open(ctx)
	cancel()
	if err != nil {
		log.Fatal("Failed to open storage", "err", err)
	}
	defer store.Close()
	log.Info("Storage ready", "backend", os.Getenv("STORAGE_BACKEND"))

	authService := services.NewAuthService(store, []byte(signingKey))
	habitService := services.NewHabitService(store)
	settingsService := services.NewSettingsService(store)

	middleware.InitPrometheus()

	authHandler := handlers.NewAuthHandler(authService, habitService)
	habitHandler := handlers.NewHabitHandler(habitService)
	settingsHandler := handlers.NewSettingsHandler(settingsService)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "habitflow-api"}`))
	}).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/signup", authHandler.SignUp).Methods("POST")
	api.HandleFunc("/auth/signin", authHandler.SignIn).Methods("POST")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.SessionAuthMiddleware(authService))

	protected.HandleFunc("/auth/signout", authHandler.SignOut).Methods("POST")
	protected.HandleFunc("/user", authHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user", authHandler.UpdateProfile).Methods("PUT")

	protected.HandleFunc("/habits", habitHandler.ListHabits).Methods("GET")
	protected.HandleFunc("/habits", habitHandler.CreateHabit).Methods("POST")
	protected.HandleFunc("/habits/today", habitHandler.GetTodayHabits).Methods("GET")
	protected.HandleFunc("/habits/today/completed", habitHandler.GetTodayCompletedHabits).Methods("GET")
	protected.HandleFunc("/habits/stats/weekly", habitHandler.GetWeeklyStats).Methods("GET")
	protected.HandleFunc("/habits/calendar", habitHandler.GetCalendar).Methods("GET")
	protected.HandleFunc("/habits/{id}", habitHandler.GetHabit).Methods("GET")
	protected.HandleFunc("/habits/{id}", habitHandler.UpdateHabit).Methods("PUT")
	protected.HandleFunc("/habits/{id}", habitHandler.DeleteHabit).Methods("DELETE")
	protected.HandleFunc("/habits/{id}/complete", habitHandler.CompleteHabit).Methods("POST")
	protected.HandleFunc("/habits/{id}/stats", habitHandler.GetHabitStats).Methods("GET")

	protected.HandleFunc("/settings/appearance", settingsHandler.GetAppearance).Methods("GET")
	protected.HandleFunc("/settings/appearance", settingsHandler.UpdateAppearance).Methods("PUT")
	protected.HandleFunc("/settings/notifications", settingsHandler.GetNotificationPreferences).Methods("GET")
	protected.HandleFunc("/settings/notifications", settingsHandler.UpdateNotificationPreferences).Methods("PUT")

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorillaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting server", "addr", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server", "err", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Info("Got signal", "sig", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", "err", err)
	}

	// Drain write-through persistence before the store closes.
	habitService.Flush()

	log.Info("Server shutdown complete")
}
