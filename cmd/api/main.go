package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/affinity-engine/internal/config"
	"github.com/jwebster45206/affinity-engine/internal/game"
	"github.com/jwebster45206/affinity-engine/internal/handlers"
	"github.com/jwebster45206/affinity-engine/internal/logger"
	"github.com/jwebster45206/affinity-engine/internal/middleware"
	"github.com/jwebster45206/affinity-engine/internal/services/events"
	"github.com/jwebster45206/affinity-engine/internal/storage"
	"github.com/jwebster45206/affinity-engine/internal/tracing"
	"github.com/jwebster45206/affinity-engine/pkg/engine"
	pkgstorage "github.com/jwebster45206/affinity-engine/pkg/storage"
	"github.com/jwebster45206/affinity-engine/pkg/story"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Affinity Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage_backend", cfg.StorageBackend,
		"data_dir", cfg.DataDir)

	shutdownTracing, err := tracing.Setup(context.Background(), "affinity-engine", cfg.OTelEndpoint)
	if err != nil {
		log.Error("Failed to set up tracing", "error", err)
		os.Exit(1)
	}

	store, redisStore := openStorage(cfg, log)

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if redisStore != nil {
		if err := redisStore.WaitForConnection(storageCtx); err != nil {
			log.Error("Failed to connect to storage", "error", err)
			os.Exit(1)
		}
	} else if err := store.Ping(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	library, err := story.DefaultLibrary()
	if err != nil {
		log.Error("Failed to load story content", "error", err)
		os.Exit(1)
	}

	eng := engine.New(store, store, log)
	eng.SetFailClosed(cfg.LedgerFailClosed)

	var publisher game.Publisher
	if redisStore != nil {
		publisher = events.NewBroadcaster(redisStore.Client(), log)
	}
	service := game.NewService(store, eng, library, publisher, log)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(store, log)
	mux.Handle("/health", healthHandler)

	episodesHandler := handlers.NewEpisodesHandler(eng, service, log)
	mux.Handle("/v1/episodes", episodesHandler)
	mux.Handle("/v1/episodes/", episodesHandler)

	profilesHandler := handlers.NewProfilesHandler(service, log)
	mux.Handle("/v1/profiles", profilesHandler)
	mux.Handle("/v1/profiles/", profilesHandler)

	if redisStore != nil {
		mux.Handle("/v1/events/", handlers.NewEventsHandler(redisStore.Client(), log))
	}

	handler := middleware.Logger(log)(mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: the events endpoint streams
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("Error flushing traces", "error", err)
	}

	log.Info("Server exited")
}

// openStorage builds the configured backend. The redis store is also returned
// separately because the event stream shares its client.
func openStorage(cfg *config.Config, log *slog.Logger) (pkgstorage.Storage, *storage.RedisStorage) {
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		s, err := storage.OpenSQLite(cfg.SQLitePath, cfg.DataDir, log)
		if err != nil {
			log.Error("Failed to open sqlite storage", "error", err, "path", cfg.SQLitePath)
			os.Exit(1)
		}
		return s, nil

	case config.BackendMemory:
		ms := pkgstorage.NewMockStorage()
		catalog := storage.NewCatalog(cfg.DataDir, log)
		episodes, err := catalog.ListEpisodes(context.Background())
		if err != nil {
			log.Warn("Failed to read episode catalog", "error", err, "dir", catalog.Dir())
		}
		for _, ep := range episodes {
			ms.AddEpisode(ep)
		}
		log.Warn("Using in-memory storage, profiles will not survive a restart",
			"episodes", len(episodes))
		return ms, nil

	default:
		s, err := storage.NewRedisStorage(cfg.RedisURL, cfg.DataDir, cfg.ProfileTTL, log)
		if err != nil {
			log.Error("Failed to create redis storage", "error", err)
			os.Exit(1)
		}
		return s, s
	}
}
