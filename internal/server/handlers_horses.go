package server

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aornugent/horseboard-sub002/internal/domain"
	apperrors "github.com/aornugent/horseboard-sub002/internal/errors"
)

type createHorseRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateHorse(c echo.Context) error {
	boardID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req createHorseRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return apperrors.ValidationError("name is required")
	}

	ctx := c.Request().Context()
	if _, err := s.repos.Boards.Get(ctx, boardID); err != nil {
		return err
	}

	horse, err := s.repos.Horses.Create(ctx, boardID, req.Name)
	if err != nil {
		return err
	}

	s.hub.Broadcast(boardID, domain.NewHorsesEvent([]domain.Horse{horse}, s.clock.Now()))
	return created(c, horse)
}

type updateHorseRequest struct {
	Name            *string    `json:"name"`
	Note            *string    `json:"note"`
	ClearNote       bool       `json:"clear_note"`
	NoteExpiry      *time.Time `json:"note_expiry"`
	ClearNoteExpiry bool       `json:"clear_note_expiry"`
	Archived        *bool      `json:"archived"`
}

func (s *Server) handleUpdateHorse(c echo.Context) error {
	horseID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req updateHorseRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return apperrors.ValidationError("name must not be empty")
	}

	ctx := c.Request().Context()
	horse, err := s.repos.Horses.Update(ctx, horseID, domain.HorsePatch{
		Name:            req.Name,
		Note:            req.Note,
		ClearNote:       req.ClearNote,
		NoteExpiry:      req.NoteExpiry,
		ClearNoteExpiry: req.ClearNoteExpiry,
		Archived:        req.Archived,
	})
	if err != nil {
		return err
	}

	s.hub.Broadcast(horse.BoardID, domain.NewHorsesEvent([]domain.Horse{horse}, s.clock.Now()))

	// Archiving flips the horse's diet entries out of (or back into) the
	// usage counts, so the feed order may change.
	if req.Archived != nil {
		s.ranks.Trigger(horse.BoardID)
	}
	return ok(c, horse)
}

func (s *Server) handleDeleteHorse(c echo.Context) error {
	horseID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	horse, err := s.repos.Horses.Delete(ctx, horseID)
	if err != nil {
		return err
	}

	// Deletion propagates by omission, which only a full event carries.
	s.broadcastFull(ctx, horse.BoardID)
	s.ranks.Trigger(horse.BoardID)
	return ok(c, nil)
}
