package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aornugent/horseboard-sub002/internal/domain"
)

func boardAt(updated time.Time) domain.Board {
	return domain.Board{ID: uuid.New(), TimeMode: domain.TimeModeAuto, Timezone: "UTC", UpdatedAt: updated}
}

func TestBoardStorePushAuthority(t *testing.T) {
	s := NewBoardStore()
	now := time.Now()

	apiBoard := boardAt(now)
	apiBoard.ZoomLevel = 2
	s.Update(apiBoard, domain.SourceAPI)

	pushBoard := apiBoard
	pushBoard.ZoomLevel = 1
	pushBoard.UpdatedAt = now.Add(-time.Minute)
	s.Update(pushBoard, domain.SourcePush)

	got, ok := s.Get()
	require.True(t, ok)
	assert.Equal(t, 1, got.ZoomLevel, "push replaces even with an older timestamp")
}

func TestBoardStoreDiscardsStaleAPIWrite(t *testing.T) {
	s := NewBoardStore()
	now := time.Now()

	current := boardAt(now)
	current.CurrentPage = 3
	s.Update(current, domain.SourceAPI)

	stale := current
	stale.CurrentPage = 1
	stale.UpdatedAt = now.Add(-time.Second)
	s.Update(stale, domain.SourceAPI)

	got, _ := s.Get()
	assert.Equal(t, 3, got.CurrentPage)
}

func TestBoardStorePatchMissingBoardIsNoOp(t *testing.T) {
	s := NewBoardStore()
	notified := 0
	s.Subscribe(func() { notified++ })

	s.Patch(func(b domain.Board) domain.Board {
		b.ZoomLevel = 5
		return b
	}, domain.SourceLocal)

	_, ok := s.Get()
	assert.False(t, ok)
	assert.Zero(t, notified)
}

func TestBoardStoreEffectiveTimeMode(t *testing.T) {
	s := NewBoardStore()
	morning := time.Date(2026, 3, 1, 5, 0, 0, 0, time.UTC)
	until := morning.Add(time.Hour)
	board := boardAt(morning)
	board.TimeMode = domain.TimeModePM
	board.OverrideUntil = &until
	s.Update(board, domain.SourcePush)

	assert.Equal(t, domain.TimeModePM, s.EffectiveTimeMode(morning))
	// Past the override expiry the AUTO derivation takes over: 06:10 UTC
	// falls inside the morning window.
	assert.Equal(t, domain.TimeModeAM, s.EffectiveTimeMode(until.Add(10*time.Minute)))
}
