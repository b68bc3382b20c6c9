package server

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/aornugent/horseboard-sub002/internal/domain"
	apperrors "github.com/aornugent/horseboard-sub002/internal/errors"
)

func parseIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid UUID format").WithField(name, c.Param(name))
	}
	return id, nil
}

type pairRequest struct {
	PairCode string `json:"pair_code"`
}

func (s *Server) handlePair(c echo.Context) error {
	var req pairRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	code := strings.ToUpper(strings.TrimSpace(req.PairCode))
	if code == "" {
		return apperrors.ValidationError("pair_code is required")
	}

	board, err := s.repos.Boards.GetByPairCode(c.Request().Context(), code)
	if err != nil {
		return err
	}
	return ok(c, board)
}

type createBoardRequest struct {
	Timezone string `json:"timezone"`
}

func (s *Server) handleCreateBoard(c echo.Context) error {
	var req createBoardRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Timezone == "" {
		req.Timezone = s.config.DefaultTimezone
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return apperrors.ValidationError("unknown timezone").WithField("timezone", req.Timezone)
	}

	board, err := s.repos.Boards.Create(c.Request().Context(), req.Timezone)
	if err != nil {
		return err
	}
	return created(c, board)
}

func (s *Server) handleGetBoard(c echo.Context) error {
	boardID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	snap, err := s.repos.Snapshots.Snapshot(c.Request().Context(), boardID)
	if err != nil {
		return err
	}
	return ok(c, snap)
}

type updateBoardRequest struct {
	Timezone    *string `json:"timezone"`
	ZoomLevel   *int    `json:"zoom_level"`
	CurrentPage *int    `json:"current_page"`
}

func (s *Server) handleUpdateBoard(c echo.Context) error {
	boardID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req updateBoardRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return apperrors.ValidationError("unknown timezone").WithField("timezone", *req.Timezone)
		}
	}
	if req.ZoomLevel != nil && *req.ZoomLevel < 1 {
		return apperrors.ValidationError("zoom_level must be positive")
	}
	if req.CurrentPage != nil && *req.CurrentPage < 1 {
		return apperrors.ValidationError("current_page must be positive")
	}

	ctx := c.Request().Context()
	board, err := s.repos.Boards.Update(ctx, boardID, domain.BoardPatch{
		Timezone:    req.Timezone,
		ZoomLevel:   req.ZoomLevel,
		CurrentPage: req.CurrentPage,
	})
	if err != nil {
		return err
	}

	s.hub.Broadcast(boardID, domain.NewStateEvent(board, s.clock.Now()))
	return ok(c, board)
}

type timeModeRequest struct {
	TimeMode      string     `json:"time_mode"`
	OverrideUntil *time.Time `json:"override_until"`
}

func (s *Server) handleSetTimeMode(c echo.Context) error {
	boardID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req timeModeRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	mode := domain.TimeMode(strings.ToUpper(req.TimeMode))
	if mode != domain.TimeModeAM && mode != domain.TimeModePM {
		return apperrors.ValidationError("time_mode must be AM or PM").WithField("time_mode", req.TimeMode)
	}
	if req.OverrideUntil == nil {
		return apperrors.ValidationError("override_until is required")
	}
	if !req.OverrideUntil.After(s.clock.Now()) {
		return apperrors.ValidationError("override_until must be in the future")
	}

	ctx := c.Request().Context()
	board, err := s.repos.Boards.SetTimeMode(ctx, boardID, mode, req.OverrideUntil)
	if err != nil {
		return err
	}

	s.hub.Broadcast(boardID, domain.NewStateEvent(board, s.clock.Now()))
	return ok(c, board)
}

func (s *Server) handleClearTimeMode(c echo.Context) error {
	boardID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	board, err := s.repos.Boards.SetTimeMode(ctx, boardID, domain.TimeModeAuto, nil)
	if err != nil {
		return err
	}

	s.hub.Broadcast(boardID, domain.NewStateEvent(board, s.clock.Now()))
	return ok(c, board)
}
