package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/aornugent/horseboard-sub002/internal/broadcast"
	"github.com/aornugent/horseboard-sub002/internal/config"
	"github.com/aornugent/horseboard-sub002/internal/database"
	"github.com/aornugent/horseboard-sub002/internal/logging"
	"github.com/aornugent/horseboard-sub002/internal/rank"
	"github.com/aornugent/horseboard-sub002/internal/scheduler"
	"github.com/aornugent/horseboard-sub002/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *database.DB {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := db.Migrate(ctx); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func runGracefulShutdown(srv *server.Server, sched *scheduler.Scheduler, ranks *rank.Manager, hub *broadcast.Hub, db *database.DB) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		sched.Shutdown()
		ranks.Shutdown()
		hub.Stop()
		db.Close()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	db := setupDB(cfg)

	boardRepo := database.NewBoardRepo(db)
	horseRepo := database.NewHorseRepo(db)
	feedRepo := database.NewFeedRepo(db)
	dietRepo := database.NewDietRepo(db)
	snapshotRepo := database.NewSnapshotRepo(db)

	hub := broadcast.NewHub(clock)
	publisher := server.NewPublisher(boardRepo, horseRepo, feedRepo, hub, clock)

	ranks := rank.New(dietRepo, feedRepo, clock, func(boardID uuid.UUID) {
		publisher.PublishFeeds(context.Background(), boardID)
	})

	sched := scheduler.New(boardRepo, horseRepo, publisher, clock)
	sched.Start(context.Background())

	repos := server.Repositories{
		Boards:    boardRepo,
		Horses:    horseRepo,
		Feeds:     feedRepo,
		Diet:      dietRepo,
		Snapshots: snapshotRepo,
	}
	srv := server.NewServer(cfg, repos, hub, ranks, db, clock)

	done := runGracefulShutdown(srv, sched, ranks, hub, db)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
