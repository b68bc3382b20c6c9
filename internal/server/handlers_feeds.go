package server

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/aornugent/horseboard-sub002/internal/domain"
	apperrors "github.com/aornugent/horseboard-sub002/internal/errors"
)

type createFeedRequest struct {
	Name string `json:"name"`
	Unit string `json:"unit"`
}

func (s *Server) handleCreateFeed(c echo.Context) error {
	boardID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req createFeedRequest
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

	feed, err := s.repos.Feeds.Create(ctx, boardID, req.Name, req.Unit)
	if err != nil {
		return err
	}

	s.hub.Broadcast(boardID, domain.NewFeedsEvent([]domain.Feed{feed}, s.clock.Now()))
	return created(c, feed)
}

type updateFeedRequest struct {
	Name           *string  `json:"name"`
	Unit           *string  `json:"unit"`
	StockLevel     *float64 `json:"stock_level"`
	ClearStock     bool     `json:"clear_stock"`
	StockWarnAt    *float64 `json:"stock_warn_at"`
	ClearStockWarn bool     `json:"clear_stock_warn"`
}

func (s *Server) handleUpdateFeed(c echo.Context) error {
	feedID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req updateFeedRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return apperrors.ValidationError("name must not be empty")
	}
	if req.StockLevel != nil && *req.StockLevel < 0 {
		return apperrors.ValidationError("stock_level must not be negative")
	}
	if req.StockWarnAt != nil && *req.StockWarnAt < 0 {
		return apperrors.ValidationError("stock_warn_at must not be negative")
	}

	ctx := c.Request().Context()
	feed, err := s.repos.Feeds.Update(ctx, feedID, domain.FeedPatch{
		Name:           req.Name,
		Unit:           req.Unit,
		StockLevel:     req.StockLevel,
		ClearStock:     req.ClearStock,
		StockWarnAt:    req.StockWarnAt,
		ClearStockWarn: req.ClearStockWarn,
	})
	if err != nil {
		return err
	}

	s.hub.Broadcast(feed.BoardID, domain.NewFeedsEvent([]domain.Feed{feed}, s.clock.Now()))
	return ok(c, feed)
}

func (s *Server) handleDeleteFeed(c echo.Context) error {
	feedID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	feed, err := s.repos.Feeds.Delete(ctx, feedID)
	if err != nil {
		return err
	}

	// Deletion propagates by omission, which only a full event carries.
	s.broadcastFull(ctx, feed.BoardID)
	return ok(c, nil)
}
