package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/aornugent/horseboard-sub002/internal/domain"
)

// Publisher re-broadcasts repository state to a board's subscribers. The
// scheduler uses it after sweeps and the rank manager after recomputes, both
// outside any request context.
type Publisher struct {
	boards domain.BoardRepository
	horses domain.HorseRepository
	feeds  domain.FeedRepository
	hub    pushHub
	clock  clockwork.Clock
}

func NewPublisher(boards domain.BoardRepository, horses domain.HorseRepository, feeds domain.FeedRepository, hub pushHub, clock clockwork.Clock) *Publisher {
	return &Publisher{
		boards: boards,
		horses: horses,
		feeds:  feeds,
		hub:    hub,
		clock:  clock,
	}
}

// PublishBoard pushes the current board configuration as a state event.
func (p *Publisher) PublishBoard(ctx context.Context, boardID uuid.UUID) {
	board, err := p.boards.Get(ctx, boardID)
	if err != nil {
		if !errors.Is(err, domain.ErrBoardNotFound) {
			slog.Error("failed to load board for publish", "board_id", boardID, "error", err)
		}
		return
	}
	p.hub.Broadcast(boardID, domain.NewStateEvent(board, p.clock.Now()))
}

// PublishHorses pushes the board's horses as an upsert-only granular event.
func (p *Publisher) PublishHorses(ctx context.Context, boardID uuid.UUID) {
	horses, err := p.horses.ListByBoard(ctx, boardID)
	if err != nil {
		slog.Error("failed to load horses for publish", "board_id", boardID, "error", err)
		return
	}
	p.hub.Broadcast(boardID, domain.NewHorsesEvent(horses, p.clock.Now()))
}

// PublishFeeds pushes the board's feeds, rank order included, as an
// upsert-only granular event.
func (p *Publisher) PublishFeeds(ctx context.Context, boardID uuid.UUID) {
	feeds, err := p.feeds.ListByBoard(ctx, boardID)
	if err != nil {
		slog.Error("failed to load feeds for publish", "board_id", boardID, "error", err)
		return
	}
	p.hub.Broadcast(boardID, domain.NewFeedsEvent(feeds, p.clock.Now()))
}
