package store

import (
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/aornugent/horseboard-sub002/internal/domain"
)

// DietStore specializes the collection for diet entries keyed by the
// (horse, feed) pair. Local writes stamp updated_at from the injected
// clock so arbitration against server-sourced values stays meaningful.
type DietStore struct {
	*Collection[domain.DietEntry]
	clock clockwork.Clock
}

// NewDietStore creates an empty diet store.
func NewDietStore(clock clockwork.Clock) *DietStore {
	return &DietStore{Collection: NewCollection[domain.DietEntry](), clock: clock}
}

// UpdateAmount merges exactly one amount field into the entry for the
// (horse, feed) pair, creating it when absent with the other field nil.
// When both fields end up nil the entry is logically removed.
func (s *DietStore) UpdateAmount(horseID, feedID uuid.UUID, field domain.DietField, value *float64, source domain.UpdateSource) {
	key := domain.DietKey(horseID, feedID)
	now := s.clock.Now()

	s.mu.Lock()
	entry, ok := s.items[key]
	if !ok {
		entry = domain.DietEntry{HorseID: horseID, FeedID: feedID, CreatedAt: now}
	}

	switch field {
	case domain.DietFieldAM:
		entry.AMAmount = value
	case domain.DietFieldPM:
		entry.PMAmount = value
	default:
		s.mu.Unlock()
		return
	}
	entry.UpdatedAt = now

	changed := false
	if entry.Empty() {
		if ok {
			delete(s.items, key)
			changed = true
		}
	} else {
		changed = s.applyLocked(entry, source)
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// CountActiveFeeds counts distinct feeds for which the horse has at least
// one non-nil non-zero amount.
func (s *DietStore) CountActiveFeeds(horseID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[uuid.UUID]struct{})
	for _, entry := range s.items {
		if entry.HorseID == horseID && entry.Active() {
			seen[entry.FeedID] = struct{}{}
		}
	}
	return len(seen)
}

// Entry returns the diet entry for the (horse, feed) pair.
func (s *DietStore) Entry(horseID, feedID uuid.UUID) (domain.DietEntry, bool) {
	return s.Get(domain.DietKey(horseID, feedID))
}

// RemoveForHorse drops all entries of one horse (cascade on horse delete).
func (s *DietStore) RemoveForHorse(horseID uuid.UUID, source domain.UpdateSource) {
	s.removeMatching(func(e domain.DietEntry) bool { return e.HorseID == horseID })
}

// RemoveForFeed drops all entries of one feed (cascade on feed delete).
func (s *DietStore) RemoveForFeed(feedID uuid.UUID, source domain.UpdateSource) {
	s.removeMatching(func(e domain.DietEntry) bool { return e.FeedID == feedID })
}

func (s *DietStore) removeMatching(match func(domain.DietEntry) bool) {
	s.mu.Lock()
	changed := false
	for key, entry := range s.items {
		if match(entry) {
			delete(s.items, key)
			changed = true
		}
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}
