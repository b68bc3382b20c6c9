package store

import (
	"sync"
	"time"

	"github.com/aornugent/horseboard-sub002/internal/domain"
)

// BoardStore holds at most one board, the shared configuration entity.
// Updates go through the same arbitration as collection items.
type BoardStore struct {
	mu    sync.RWMutex
	board domain.Board
	held  bool

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

// NewBoardStore creates an empty board store.
func NewBoardStore() *BoardStore {
	return &BoardStore{subs: make(map[int]func())}
}

// Update replaces the held board if arbitration accepts the incoming value.
func (s *BoardStore) Update(incoming domain.Board, source domain.UpdateSource) {
	s.mu.Lock()
	if !shouldReplace(s.board, s.held, incoming, source) {
		s.mu.Unlock()
		return
	}
	s.board = incoming
	s.held = true
	s.mu.Unlock()
	s.notify()
}

// Patch applies a partial update to the held board. A missing board is a
// silent no-op, matching collection update semantics.
func (s *BoardStore) Patch(patch func(domain.Board) domain.Board, source domain.UpdateSource) {
	s.mu.Lock()
	if !s.held {
		s.mu.Unlock()
		return
	}
	incoming := patch(s.board)
	if !shouldReplace(s.board, true, incoming, source) {
		s.mu.Unlock()
		return
	}
	s.board = incoming
	s.mu.Unlock()
	s.notify()
}

// Get returns the held board.
func (s *BoardStore) Get() (domain.Board, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board, s.held
}

// Clear drops the held board, used when the local session is invalidated.
func (s *BoardStore) Clear() {
	s.mu.Lock()
	s.board = domain.Board{}
	s.held = false
	s.mu.Unlock()
	s.notify()
}

// EffectiveTimeMode derives the display mode for the held board at now.
// Without a board it reports AUTO resolution against UTC.
func (s *BoardStore) EffectiveTimeMode(now time.Time) domain.TimeMode {
	s.mu.RLock()
	board := s.board
	s.mu.RUnlock()
	return board.EffectiveTimeMode(now)
}

// Subscribe registers a listener called after every applied mutation. The
// returned function cancels the subscription.
func (s *BoardStore) Subscribe(fn func()) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *BoardStore) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
