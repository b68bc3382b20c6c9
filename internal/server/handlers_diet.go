package server

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"

	"github.com/aornugent/horseboard-sub002/internal/domain"
	apperrors "github.com/aornugent/horseboard-sub002/internal/errors"
)

// pgForeignKeyViolation is the SQLSTATE for a missing referenced row.
const pgForeignKeyViolation = "23503"

type dietRequest struct {
	HorseID uuid.UUID `json:"horse_id"`
	FeedID  uuid.UUID `json:"feed_id"`
	Field   string    `json:"field"`
	Value   *float64  `json:"value"`
}

type dietResponse struct {
	Entry   *domain.DietEntry `json:"entry,omitempty"`
	Removed bool              `json:"removed"`
}

func (s *Server) handleUpsertDiet(c echo.Context) error {
	boardID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req dietRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.HorseID == uuid.Nil || req.FeedID == uuid.Nil {
		return apperrors.ValidationError("horse_id and feed_id are required")
	}
	if !domain.ValidDietField(req.Field) {
		return apperrors.ValidationError("field must be am_amount or pm_amount").WithField("field", req.Field)
	}
	if req.Value != nil && *req.Value < 0 {
		return apperrors.ValidationError("value must not be negative")
	}

	ctx := c.Request().Context()
	entry, removed, err := s.repos.Diet.UpsertAmount(ctx, req.HorseID, req.FeedID, domain.DietField(req.Field), req.Value)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return apperrors.NotFoundError("horse or feed not found").
				WithField("horse_id", req.HorseID.String()).
				WithField("feed_id", req.FeedID.String())
		}
		return err
	}

	if removed {
		// A removed entry can only propagate by omission.
		s.broadcastFull(ctx, boardID)
	} else {
		s.hub.Broadcast(boardID, domain.NewDietEvent([]domain.DietEntry{entry}, s.clock.Now()))
	}
	s.ranks.Trigger(boardID)

	resp := dietResponse{Removed: removed}
	if !removed {
		resp.Entry = &entry
	}
	return ok(c, resp)
}
