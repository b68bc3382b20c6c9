// Package scheduler runs the periodic correction sweeps that mutate shared
// state outside the request path: manual time-mode overrides past their
// expiry and horse notes past theirs. Affected boards are re-broadcast so
// every subscriber converges without polling.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/aornugent/horseboard-sub002/internal/domain"
	"github.com/aornugent/horseboard-sub002/internal/metrics"
)

const (
	overrideSweepInterval = time.Minute
	noteSweepInterval     = time.Hour
)

// Publisher pushes corrected state to a board's subscribers. Implemented by
// the server on top of the broadcast hub.
type Publisher interface {
	// PublishBoard re-broadcasts the board configuration.
	PublishBoard(ctx context.Context, boardID uuid.UUID)
	// PublishHorses re-broadcasts the board's horses.
	PublishHorses(ctx context.Context, boardID uuid.UUID)
}

// BoardStore is the slice of the board repository the override sweep needs.
type BoardStore interface {
	ListExpiredOverrides(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ResetOverride(ctx context.Context, id uuid.UUID) (domain.Board, error)
}

// HorseStore is the slice of the horse repository the note sweep needs.
type HorseStore interface {
	ListExpiredNotes(ctx context.Context, now time.Time) ([]domain.Horse, error)
	ClearNote(ctx context.Context, id uuid.UUID) (domain.Horse, error)
}

// Scheduler owns the two sweep tickers. Construct one per server instance;
// Shutdown cancels both tickers so nothing fires after disposal.
type Scheduler struct {
	boards    BoardStore
	horses    HorseStore
	publisher Publisher
	clock     clockwork.Clock

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates a scheduler. Call Start to begin sweeping.
func New(boards BoardStore, horses HorseStore, publisher Publisher, clock clockwork.Clock) *Scheduler {
	return &Scheduler{
		boards:    boards,
		horses:    horses,
		publisher: publisher,
		clock:     clock,
		stopCh:    make(chan struct{}),
	}
}

// Start launches both sweep loops. They stop when ctx is cancelled or
// Shutdown is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(2)
	go s.loop(ctx, overrideSweepInterval, s.sweepOverrides)
	go s.loop(ctx, noteSweepInterval, s.sweepNotes)
}

// Shutdown cancels all pending sweep timers and waits for in-flight sweeps
// to finish. Idempotent.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, sweep func(context.Context)) {
	defer s.wg.Done()
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			sweep(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// sweepOverrides resets boards whose manual time-mode override has lapsed
// and re-broadcasts each. A board deleted between selection and update is
// skipped without aborting the rest of the batch.
func (s *Scheduler) sweepOverrides(ctx context.Context) {
	metrics.SweepRunsTotal.WithLabelValues("override_expiry").Inc()

	ids, err := s.boards.ListExpiredOverrides(ctx, s.clock.Now())
	if err != nil {
		slog.Error("override sweep: selection failed", "error", err)
		return
	}

	for _, id := range ids {
		if _, err := s.boards.ResetOverride(ctx, id); err != nil {
			if errors.Is(err, domain.ErrBoardNotFound) {
				continue
			}
			slog.Error("override sweep: reset failed", "board_id", id, "error", err)
			continue
		}
		metrics.SweepResetsTotal.WithLabelValues("override_expiry").Inc()
		slog.Info("override expired, board reset to AUTO", "board_id", id)
		s.publisher.PublishBoard(ctx, id)
	}
}

// sweepNotes clears horse notes whose expiry has lapsed and re-broadcasts
// each affected horse's board.
func (s *Scheduler) sweepNotes(ctx context.Context) {
	metrics.SweepRunsTotal.WithLabelValues("note_expiry").Inc()

	horses, err := s.horses.ListExpiredNotes(ctx, s.clock.Now())
	if err != nil {
		slog.Error("note sweep: selection failed", "error", err)
		return
	}

	// One publish per board even when several of its horses expired together.
	touched := make(map[uuid.UUID]struct{})
	for _, horse := range horses {
		if _, err := s.horses.ClearNote(ctx, horse.ID); err != nil {
			if errors.Is(err, domain.ErrHorseNotFound) {
				continue
			}
			slog.Error("note sweep: clear failed", "horse_id", horse.ID, "error", err)
			continue
		}
		metrics.SweepResetsTotal.WithLabelValues("note_expiry").Inc()
		slog.Info("note expired and cleared", "horse_id", horse.ID, "board_id", horse.BoardID)
		touched[horse.BoardID] = struct{}{}
	}
	for boardID := range touched {
		s.publisher.PublishHorses(ctx, boardID)
	}
}
