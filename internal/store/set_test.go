package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aornugent/horseboard-sub002/internal/domain"
)

func fullEvent(t *testing.T) domain.Event {
	t.Helper()
	now := time.Now()
	boardID := uuid.New()
	h1 := domain.Horse{ID: uuid.New(), BoardID: boardID, Name: "Milo", UpdatedAt: now}
	f1 := domain.Feed{ID: uuid.New(), BoardID: boardID, Name: "Oats", Rank: 1, UpdatedAt: now}
	snap := domain.BoardSnapshot{
		Board:  domain.Board{ID: boardID, TimeMode: domain.TimeModeAuto, Timezone: "UTC", UpdatedAt: now},
		Horses: []domain.Horse{h1},
		Feeds:  []domain.Feed{f1},
		Diet:   []domain.DietEntry{{HorseID: h1.ID, FeedID: f1.ID, AMAmount: ptr(2), UpdatedAt: now}},
	}
	return domain.NewFullEvent(snap, now)
}

func TestApplyFullEventTwiceIsIdempotent(t *testing.T) {
	s := NewSet(clockwork.NewFakeClock())
	event := fullEvent(t)

	s.ApplyEvent(event)
	board1, _ := s.Board.Get()
	horses1 := s.Horses.All()
	feeds1 := s.Feeds.All()
	diet1 := s.Diet.All()

	s.ApplyEvent(event)
	board2, _ := s.Board.Get()

	assert.Equal(t, board1, board2)
	assert.Equal(t, horses1, s.Horses.All())
	assert.Equal(t, feeds1, s.Feeds.All())
	assert.Equal(t, diet1, s.Diet.All())
}

func TestApplyFullEventDeletesByOmission(t *testing.T) {
	s := NewSet(clockwork.NewFakeClock())
	event := fullEvent(t)
	s.ApplyEvent(event)

	// A locally added horse absent from the next full event disappears.
	s.Horses.Add(domain.Horse{ID: uuid.New(), Name: "stray", UpdatedAt: time.Now()}, domain.SourceLocal)
	require.Equal(t, 2, s.Horses.Len())

	s.ApplyEvent(event)
	assert.Equal(t, 1, s.Horses.Len())
}

func TestGranularEventsAreUpsertOnly(t *testing.T) {
	s := NewSet(clockwork.NewFakeClock())
	s.ApplyEvent(fullEvent(t))
	require.Equal(t, 1, s.Horses.Len())

	newcomer := domain.Horse{ID: uuid.New(), Name: "Pip", UpdatedAt: time.Now()}
	s.ApplyEvent(domain.NewHorsesEvent([]domain.Horse{newcomer}, time.Now()))

	// The horse from the full event survives: granular events never delete
	// by omission.
	assert.Equal(t, 2, s.Horses.Len())
}

func TestGranularEventWithoutDataSignalsRefetch(t *testing.T) {
	s := NewSet(clockwork.NewFakeClock())

	refetch := s.ApplyEvent(domain.NewRefetchEvent(domain.EventDiet, time.Now()))
	assert.Equal(t, []domain.EventType{domain.EventDiet}, refetch)

	refetch = s.ApplyEvent(domain.NewRefetchEvent(domain.EventData, time.Now()))
	assert.ElementsMatch(t, []domain.EventType{domain.EventHorses, domain.EventFeeds, domain.EventDiet}, refetch)
}

func TestApplyEventNotifiesOncePerBatch(t *testing.T) {
	s := NewSet(clockwork.NewFakeClock())
	notified := 0
	cancel := s.Subscribe(func() { notified++ })
	defer cancel()

	s.ApplyEvent(fullEvent(t))
	assert.Equal(t, 1, notified, "a multi-entity event must surface as one notification")
}

func TestStateEventUpdatesBoardOnly(t *testing.T) {
	s := NewSet(clockwork.NewFakeClock())
	s.ApplyEvent(fullEvent(t))
	horsesBefore := s.Horses.All()

	board, _ := s.Board.Get()
	board.TimeMode = domain.TimeModePM
	board.UpdatedAt = board.UpdatedAt.Add(time.Second)
	s.ApplyEvent(domain.NewStateEvent(board, time.Now()))

	got, _ := s.Board.Get()
	assert.Equal(t, domain.TimeModePM, got.TimeMode)
	assert.Equal(t, horsesBefore, s.Horses.All())
}

func TestResetClearsEverything(t *testing.T) {
	s := NewSet(clockwork.NewFakeClock())
	s.ApplyEvent(fullEvent(t))

	s.Reset()

	_, held := s.Board.Get()
	assert.False(t, held)
	assert.Zero(t, s.Horses.Len())
	assert.Zero(t, s.Feeds.Len())
	assert.Zero(t, s.Diet.Len())
}
