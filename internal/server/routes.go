package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")

	// Pairing and board lifecycle
	api.POST("/pair", s.handlePair)
	api.POST("/boards", s.handleCreateBoard)
	api.GET("/boards/:id", s.handleGetBoard)
	api.PATCH("/boards/:id", s.handleUpdateBoard)
	api.PUT("/boards/:id/time-mode", s.handleSetTimeMode)
	api.DELETE("/boards/:id/time-mode", s.handleClearTimeMode)

	// Push channel
	api.GET("/boards/:id/events", s.handleEvents)

	// Horses
	api.POST("/boards/:id/horses", s.handleCreateHorse)
	api.PATCH("/horses/:id", s.handleUpdateHorse)
	api.DELETE("/horses/:id", s.handleDeleteHorse)

	// Feeds
	api.POST("/boards/:id/feeds", s.handleCreateFeed)
	api.PATCH("/feeds/:id", s.handleUpdateFeed)
	api.DELETE("/feeds/:id", s.handleDeleteFeed)

	// Diet
	api.PUT("/boards/:id/diet", s.handleUpsertDiet)
}
