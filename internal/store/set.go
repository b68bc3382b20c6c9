package store

import (
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/aornugent/horseboard-sub002/internal/domain"
)

// Set bundles the four client stores and applies push events to them as one
// batch. View code subscribes here rather than to individual stores, so a
// multi-entity event is observed as a single consistent snapshot and never
// as a mixed-generation intermediate state.
type Set struct {
	Board  *BoardStore
	Horses *Collection[domain.Horse]
	Feeds  *Collection[domain.Feed]
	Diet   *DietStore

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

// NewSet creates the client store bundle.
func NewSet(clock clockwork.Clock) *Set {
	return &Set{
		Board:  NewBoardStore(),
		Horses: NewCollection[domain.Horse](),
		Feeds:  NewCollection[domain.Feed](),
		Diet:   NewDietStore(clock),
		subs:   make(map[int]func()),
	}
}

// ApplyEvent dispatches a validated push event to the affected stores with
// push authority. Full events reconcile with deletion-by-omission; granular
// events are upsert-only. The returned slice names resources the caller
// should re-fetch via REST because the event omitted its data.
func (s *Set) ApplyEvent(event domain.Event) []domain.EventType {
	var refetch []domain.EventType

	switch event.Type {
	case domain.EventFull:
		s.Board.Update(*event.Data.Board, domain.SourcePush)
		s.Horses.Reconcile(event.Data.Horses, domain.SourcePush)
		s.Feeds.Reconcile(event.Data.Feeds, domain.SourcePush)
		s.Diet.Reconcile(event.Data.Diet, domain.SourcePush)

	case domain.EventState:
		s.Board.Update(*event.Data.Board, domain.SourcePush)

	case domain.EventData:
		if event.Data == nil {
			refetch = append(refetch, domain.EventHorses, domain.EventFeeds, domain.EventDiet)
			break
		}
		upsertAll(s.Horses, event.Data.Horses)
		upsertAll(s.Feeds, event.Data.Feeds)
		upsertAll(s.Diet.Collection, event.Data.Diet)

	case domain.EventHorses:
		if event.Data == nil {
			refetch = append(refetch, domain.EventHorses)
			break
		}
		upsertAll(s.Horses, event.Data.Horses)

	case domain.EventFeeds:
		if event.Data == nil {
			refetch = append(refetch, domain.EventFeeds)
			break
		}
		upsertAll(s.Feeds, event.Data.Feeds)

	case domain.EventDiet:
		if event.Data == nil {
			refetch = append(refetch, domain.EventDiet)
			break
		}
		upsertAll(s.Diet.Collection, event.Data.Diet)
	}

	s.notify()
	return refetch
}

// Reset clears every store, used when the local session is dropped.
func (s *Set) Reset() {
	s.Board.Clear()
	s.Horses.Set(nil, domain.SourceLocal)
	s.Feeds.Set(nil, domain.SourceLocal)
	s.Diet.Set(nil, domain.SourceLocal)
	s.notify()
}

// Subscribe registers a listener called once per applied event batch. The
// returned function cancels the subscription.
func (s *Set) Subscribe(fn func()) func() {
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

func (s *Set) notify() {
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

func upsertAll[T Item](c *Collection[T], items []T) {
	for _, item := range items {
		c.Upsert(item, domain.SourcePush)
	}
}
