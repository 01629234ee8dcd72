package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/robot-engine/internal/config"
	"github.com/jwebster45206/robot-engine/internal/handlers"
	"github.com/jwebster45206/robot-engine/internal/logger"
	"github.com/jwebster45206/robot-engine/internal/middleware"
	"github.com/jwebster45206/robot-engine/internal/services/events"
	"github.com/jwebster45206/robot-engine/internal/services/session"
	"github.com/jwebster45206/robot-engine/internal/storage"
	"github.com/jwebster45206/robot-engine/pkg/compiler"
	"github.com/jwebster45206/robot-engine/pkg/level"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Robot Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"progress_backend", cfg.ProgressBackend)

	redisStorage := storage.NewRedisStorage(cfg.RedisURL, cfg.SessionTTL, log)
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := redisStorage.WaitForConnection(storageCtx, 10, 2*time.Second); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	health := map[string]handlers.Pinger{"redis": redisStorage}

	var progress storage.ProgressStore = redisStorage
	if cfg.ProgressBackend == config.ProgressBackendPostgres {
		pg, err := storage.NewPostgresProgressStore(storageCtx, cfg.DatabaseURL, log)
		if err != nil {
			log.Error("Failed to connect to progress database", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		progress = pg
		health["postgres"] = pg
		log.Info("Using PostgreSQL for progress")
	}

	catalog, err := level.NewCatalog(cfg.LevelsDir, log)
	if err != nil {
		log.Error("Failed to load levels", "error", err, "dir", cfg.LevelsDir)
		os.Exit(1)
	}
	log.Info("Levels loaded", "count", catalog.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.LevelsDir != "" {
		go func() {
			err := catalog.Watch(ctx, func() {
				log.Info("Levels reloaded", "count", catalog.Len())
			})
			if err != nil {
				log.Error("Level watcher stopped", "error", err)
			}
		}()
	}

	broadcaster := events.NewBroadcaster(redisStorage.Client(), log)
	manager := session.NewManager(session.Options{
		Catalog:  catalog,
		Storage:  redisStorage,
		Progress: progress,
		Events:   broadcaster,
		Compiler: compiler.New(compiler.Options{
			MaxActions: cfg.MaxActions,
			Timeout:    cfg.CompileTimeout,
		}),
		StepDelay: cfg.StepDelay,
		HitPulse:  cfg.HitPulse,
		Logger:    log,
	})

	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(health, log))

	levelsHandler := handlers.NewLevelsHandler(catalog, log)
	mux.Handle("/v1/levels", levelsHandler)
	mux.Handle("/v1/levels/", levelsHandler)

	sessionsHandler := handlers.NewSessionsHandler(manager, log)
	mux.Handle("/v1/sessions", sessionsHandler)
	mux.Handle("/v1/sessions/", sessionsHandler)

	mux.Handle("/v1/events/sessions/", handlers.NewEventsHandler(broadcaster, log))
	mux.Handle("/v1/progress", handlers.NewProgressHandler(progress, log))

	handler := middleware.LoggerWith(log, mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: event streams stay open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	manager.Close()

	if err := redisStorage.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
