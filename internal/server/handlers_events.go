package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aornugent/horseboard-sub002/internal/broadcast"
	"github.com/aornugent/horseboard-sub002/internal/domain"
	apperrors "github.com/aornugent/horseboard-sub002/internal/errors"
)

// handleEvents is the SSE push endpoint. The subscriber is registered before
// the snapshot is read: an event broadcast in between queues in the frame
// buffer and re-applies idempotently on top of the snapshot, so the client
// never observes a gap.
func (s *Server) handleEvents(c echo.Context) error {
	boardID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	sub, err := s.hub.Register(boardID)
	if err != nil {
		return apperrors.ConflictError(err.Error()).WithField("board_id", boardID.String())
	}
	defer s.hub.Unregister(sub)

	snap, err := s.repos.Snapshots.Snapshot(c.Request().Context(), boardID)
	if err != nil {
		if errors.Is(err, domain.ErrBoardNotFound) {
			return apperrors.NotFoundError("board not found").WithField("board_id", boardID.String())
		}
		return err
	}

	frame, err := broadcast.EncodeFrame(domain.NewFullEvent(snap, s.clock.Now()))
	if err != nil {
		return apperrors.InternalError("failed to encode snapshot", err)
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(frame); err != nil {
		return nil
	}
	w.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case frame := <-sub.Frames():
			if _, err := w.Write(frame); err != nil {
				slog.Debug("push connection write failed", "board_id", boardID, "error", err)
				return nil
			}
			w.Flush()
		case <-sub.Done():
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}
