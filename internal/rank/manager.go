// Package rank recomputes feed popularity order after diet mutations. A
// burst of mutations within the debounce window collapses into a single
// recompute per board.
package rank

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/aornugent/horseboard-sub002/internal/domain"
	"github.com/aornugent/horseboard-sub002/internal/metrics"
)

const debounceWindow = 500 * time.Millisecond

// DietStore is the slice of the diet repository the recompute needs.
type DietStore interface {
	UsageCounts(ctx context.Context, boardID uuid.UUID) ([]domain.FeedUsage, error)
}

// FeedStore persists the recomputed order.
type FeedStore interface {
	UpdateRanks(ctx context.Context, boardID uuid.UUID, orderedIDs []uuid.UUID) error
}

// Manager debounces rank recomputation per board. Construct one per server
// instance; Shutdown cancels all pending debounce timers.
type Manager struct {
	diet       DietStore
	feeds      FeedStore
	clock      clockwork.Clock
	onComplete func(boardID uuid.UUID)

	mu      sync.Mutex
	pending map[uuid.UUID]clockwork.Timer
	stopped bool
}

// New creates a rank manager. onComplete runs after ranks are persisted so
// the server can broadcast the new order; it may be nil.
func New(diet DietStore, feeds FeedStore, clock clockwork.Clock, onComplete func(uuid.UUID)) *Manager {
	return &Manager{
		diet:       diet,
		feeds:      feeds,
		clock:      clock,
		onComplete: onComplete,
		pending:    make(map[uuid.UUID]clockwork.Timer),
	}
}

// Trigger arms (or re-arms) the debounce timer for a board. Call it after
// every diet mutation that could change a feed's usage status.
func (m *Manager) Trigger(boardID uuid.UUID) {
	metrics.RankTriggersTotal.Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	if timer, ok := m.pending[boardID]; ok {
		timer.Reset(debounceWindow)
		return
	}
	m.pending[boardID] = m.clock.AfterFunc(debounceWindow, func() {
		m.fire(boardID)
	})
}

// Shutdown cancels all pending timers. No recompute fires afterwards.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	for boardID, timer := range m.pending {
		timer.Stop()
		delete(m.pending, boardID)
	}
}

func (m *Manager) fire(boardID uuid.UUID) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	delete(m.pending, boardID)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.recompute(ctx, boardID); err != nil {
		// A board deleted before the debounce fired is expected steady
		// state, not a fault.
		if errors.Is(err, domain.ErrBoardNotFound) {
			return
		}
		slog.Error("rank recompute failed", "board_id", boardID, "error", err)
		return
	}
	metrics.RankRecomputesTotal.Inc()

	if m.onComplete != nil {
		m.onComplete(boardID)
	}
}

// recompute sorts feeds by the number of distinct active horses, descending,
// and persists ranks 1..N. Ties keep insertion order: the first feed ever
// added wins the tie. That tie-break is a fixed contract displays rely on.
func (m *Manager) recompute(ctx context.Context, boardID uuid.UUID) error {
	usage, err := m.diet.UsageCounts(ctx, boardID)
	if err != nil {
		return err
	}
	if len(usage) == 0 {
		return nil
	}

	sort.SliceStable(usage, func(i, j int) bool {
		if usage[i].ActiveHorses != usage[j].ActiveHorses {
			return usage[i].ActiveHorses > usage[j].ActiveHorses
		}
		return usage[i].Position < usage[j].Position
	})

	ordered := make([]uuid.UUID, len(usage))
	for i, u := range usage {
		ordered[i] = u.FeedID
	}
	return m.feeds.UpdateRanks(ctx, boardID, ordered)
}
