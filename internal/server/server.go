package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/aornugent/horseboard-sub002/internal/broadcast"
	"github.com/aornugent/horseboard-sub002/internal/config"
	"github.com/aornugent/horseboard-sub002/internal/domain"
	apperrors "github.com/aornugent/horseboard-sub002/internal/errors"
)

// pushHub is the slice of the broadcast hub the handlers need.
type pushHub interface {
	Register(boardID uuid.UUID) (*broadcast.Subscriber, error)
	Unregister(sub *broadcast.Subscriber)
	Broadcast(boardID uuid.UUID, event domain.Event)
}

// rankTrigger arms the debounced rank recompute after diet mutations.
type rankTrigger interface {
	Trigger(boardID uuid.UUID)
}

// healthChecker is the slice of the database the readiness probe needs.
type healthChecker interface {
	Health(ctx context.Context) error
}

// Repositories bundles the persistence surface the server depends on.
type Repositories struct {
	Boards    domain.BoardRepository
	Horses    domain.HorseRepository
	Feeds     domain.FeedRepository
	Diet      domain.DietRepository
	Snapshots domain.SnapshotRepository
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	repos     Repositories
	hub       pushHub
	ranks     rankTrigger
	health    healthChecker
	clock     clockwork.Clock
	startTime time.Time
}

func NewServer(cfg *config.Config, repos Repositories, hub pushHub, ranks rankTrigger, health healthChecker, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		repos:     repos,
		hub:       hub,
		ranks:     ranks,
		health:    health,
		clock:     clock,
		startTime: clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// broadcastFull reads a fresh snapshot and pushes it as a full event. The
// full event is the only one that deletes by omission, so every handler that
// removes rows goes through here.
func (s *Server) broadcastFull(ctx context.Context, boardID uuid.UUID) {
	snap, err := s.repos.Snapshots.Snapshot(ctx, boardID)
	if err != nil {
		slog.Error("failed to snapshot board for broadcast", "board_id", boardID, "error", err)
		return
	}
	s.hub.Broadcast(boardID, domain.NewFullEvent(snap, s.clock.Now()))
}
