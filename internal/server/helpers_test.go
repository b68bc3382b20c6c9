package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/aornugent/horseboard-sub002/internal/broadcast"
	"github.com/aornugent/horseboard-sub002/internal/config"
	"github.com/aornugent/horseboard-sub002/internal/domain"
)

var testBase = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

// fakeStore is an in-memory implementation of every repository interface the
// server depends on.
type fakeStore struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	boards map[uuid.UUID]domain.Board
	horses map[uuid.UUID]domain.Horse
	feeds  map[uuid.UUID]domain.Feed
	diet   map[string]domain.DietEntry
}

func newFakeStore(clock clockwork.Clock) *fakeStore {
	return &fakeStore{
		clock:  clock,
		boards: make(map[uuid.UUID]domain.Board),
		horses: make(map[uuid.UUID]domain.Horse),
		feeds:  make(map[uuid.UUID]domain.Feed),
		diet:   make(map[string]domain.DietEntry),
	}
}

func (f *fakeStore) Create(ctx context.Context, timezone string) (domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock.Now()
	board := domain.Board{
		ID:          uuid.New(),
		PairCode:    fmt.Sprintf("CODE%02d", len(f.boards)+1),
		TimeMode:    domain.TimeModeAuto,
		Timezone:    timezone,
		ZoomLevel:   1,
		CurrentPage: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.boards[board.ID] = board
	return board, nil
}

func (f *fakeStore) Get(ctx context.Context, id uuid.UUID) (domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	board, ok := f.boards[id]
	if !ok {
		return domain.Board{}, domain.ErrBoardNotFound
	}
	return board, nil
}

func (f *fakeStore) GetByPairCode(ctx context.Context, code string) (domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, board := range f.boards {
		if board.PairCode == code {
			return board, nil
		}
	}
	return domain.Board{}, domain.ErrInvalidPairCode
}

func (f *fakeStore) Update(ctx context.Context, id uuid.UUID, patch domain.BoardPatch) (domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	board, ok := f.boards[id]
	if !ok {
		return domain.Board{}, domain.ErrBoardNotFound
	}
	if patch.Timezone != nil {
		board.Timezone = *patch.Timezone
	}
	if patch.ZoomLevel != nil {
		board.ZoomLevel = *patch.ZoomLevel
	}
	if patch.CurrentPage != nil {
		board.CurrentPage = *patch.CurrentPage
	}
	board.UpdatedAt = f.clock.Now()
	f.boards[id] = board
	return board, nil
}

func (f *fakeStore) SetTimeMode(ctx context.Context, id uuid.UUID, mode domain.TimeMode, until *time.Time) (domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	board, ok := f.boards[id]
	if !ok {
		return domain.Board{}, domain.ErrBoardNotFound
	}
	board.TimeMode = mode
	board.OverrideUntil = until
	board.UpdatedAt = f.clock.Now()
	f.boards[id] = board
	return board, nil
}

func (f *fakeStore) ListExpiredOverrides(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for id, board := range f.boards {
		if board.OverrideExpired(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeStore) ResetOverride(ctx context.Context, id uuid.UUID) (domain.Board, error) {
	return f.SetTimeMode(context.Background(), id, domain.TimeModeAuto, nil)
}

func (f *fakeStore) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]domain.Horse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var horses []domain.Horse
	for _, horse := range f.horses {
		if horse.BoardID == boardID {
			horses = append(horses, horse)
		}
	}
	sort.Slice(horses, func(i, j int) bool { return horses[i].CreatedAt.Before(horses[j].CreatedAt) })
	return horses, nil
}

func (f *fakeStore) CreateHorse(ctx context.Context, boardID uuid.UUID, name string) (domain.Horse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock.Now()
	horse := domain.Horse{ID: uuid.New(), BoardID: boardID, Name: name, CreatedAt: now, UpdatedAt: now}
	f.horses[horse.ID] = horse
	return horse, nil
}

func (f *fakeStore) UpdateHorse(ctx context.Context, id uuid.UUID, patch domain.HorsePatch) (domain.Horse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	horse, ok := f.horses[id]
	if !ok {
		return domain.Horse{}, domain.ErrHorseNotFound
	}
	if patch.Name != nil {
		horse.Name = *patch.Name
	}
	if patch.ClearNote {
		horse.Note = nil
	} else if patch.Note != nil {
		horse.Note = patch.Note
	}
	if patch.ClearNoteExpiry {
		horse.NoteExpiry = nil
	} else if patch.NoteExpiry != nil {
		horse.NoteExpiry = patch.NoteExpiry
	}
	if patch.Archived != nil {
		horse.Archived = *patch.Archived
	}
	horse.UpdatedAt = f.clock.Now()
	f.horses[id] = horse
	return horse, nil
}

func (f *fakeStore) DeleteHorse(ctx context.Context, id uuid.UUID) (domain.Horse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	horse, ok := f.horses[id]
	if !ok {
		return domain.Horse{}, domain.ErrHorseNotFound
	}
	delete(f.horses, id)
	for key, entry := range f.diet {
		if entry.HorseID == id {
			delete(f.diet, key)
		}
	}
	return horse, nil
}

func (f *fakeStore) ListExpiredNotes(ctx context.Context, now time.Time) ([]domain.Horse, error) {
	return nil, nil
}

func (f *fakeStore) ClearNote(ctx context.Context, id uuid.UUID) (domain.Horse, error) {
	return f.UpdateHorse(ctx, id, domain.HorsePatch{ClearNote: true, ClearNoteExpiry: true})
}

type fakeHorseRepo struct{ *fakeStore }

func (f fakeHorseRepo) Create(ctx context.Context, boardID uuid.UUID, name string) (domain.Horse, error) {
	return f.CreateHorse(ctx, boardID, name)
}

func (f fakeHorseRepo) Update(ctx context.Context, id uuid.UUID, patch domain.HorsePatch) (domain.Horse, error) {
	return f.UpdateHorse(ctx, id, patch)
}

func (f fakeHorseRepo) Delete(ctx context.Context, id uuid.UUID) (domain.Horse, error) {
	return f.DeleteHorse(ctx, id)
}

type fakeFeedRepo struct{ *fakeStore }

func (f fakeFeedRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]domain.Feed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var feeds []domain.Feed
	for _, feed := range f.feeds {
		if feed.BoardID == boardID {
			feeds = append(feeds, feed)
		}
	}
	sort.Slice(feeds, func(i, j int) bool { return feeds[i].CreatedAt.Before(feeds[j].CreatedAt) })
	return feeds, nil
}

func (f fakeFeedRepo) Create(ctx context.Context, boardID uuid.UUID, name, unit string) (domain.Feed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock.Now()
	feed := domain.Feed{ID: uuid.New(), BoardID: boardID, Name: name, Unit: unit, CreatedAt: now, UpdatedAt: now}
	f.feeds[feed.ID] = feed
	return feed, nil
}

func (f fakeFeedRepo) Update(ctx context.Context, id uuid.UUID, patch domain.FeedPatch) (domain.Feed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	feed, ok := f.feeds[id]
	if !ok {
		return domain.Feed{}, domain.ErrFeedNotFound
	}
	if patch.Name != nil {
		feed.Name = *patch.Name
	}
	if patch.Unit != nil {
		feed.Unit = *patch.Unit
	}
	if patch.ClearStock {
		feed.StockLevel = nil
	} else if patch.StockLevel != nil {
		feed.StockLevel = patch.StockLevel
	}
	if patch.ClearStockWarn {
		feed.StockWarnAt = nil
	} else if patch.StockWarnAt != nil {
		feed.StockWarnAt = patch.StockWarnAt
	}
	feed.UpdatedAt = f.clock.Now()
	f.feeds[id] = feed
	return feed, nil
}

func (f fakeFeedRepo) Delete(ctx context.Context, id uuid.UUID) (domain.Feed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	feed, ok := f.feeds[id]
	if !ok {
		return domain.Feed{}, domain.ErrFeedNotFound
	}
	delete(f.feeds, id)
	for key, entry := range f.diet {
		if entry.FeedID == id {
			delete(f.diet, key)
		}
	}
	return feed, nil
}

func (f fakeFeedRepo) UpdateRanks(ctx context.Context, boardID uuid.UUID, orderedIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, id := range orderedIDs {
		feed, ok := f.feeds[id]
		if !ok || feed.BoardID != boardID {
			continue
		}
		feed.Rank = i + 1
		f.feeds[id] = feed
	}
	return nil
}

type fakeDietRepo struct{ *fakeStore }

func (f fakeDietRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]domain.DietEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []domain.DietEntry
	for _, entry := range f.diet {
		if horse, ok := f.horses[entry.HorseID]; ok && horse.BoardID == boardID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (f fakeDietRepo) UpsertAmount(ctx context.Context, horseID, feedID uuid.UUID, field domain.DietField, value *float64) (domain.DietEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.horses[horseID]; !ok {
		return domain.DietEntry{}, false, &pgconn.PgError{Code: pgForeignKeyViolation}
	}
	if _, ok := f.feeds[feedID]; !ok {
		return domain.DietEntry{}, false, &pgconn.PgError{Code: pgForeignKeyViolation}
	}

	key := domain.DietKey(horseID, feedID)
	entry, ok := f.diet[key]
	if !ok {
		entry = domain.DietEntry{HorseID: horseID, FeedID: feedID, CreatedAt: f.clock.Now()}
	}
	if field == domain.DietFieldAM {
		entry.AMAmount = value
	} else {
		entry.PMAmount = value
	}
	entry.UpdatedAt = f.clock.Now()

	if entry.Empty() {
		delete(f.diet, key)
		return entry, true, nil
	}
	f.diet[key] = entry
	return entry, false, nil
}

func (f fakeDietRepo) UsageCounts(ctx context.Context, boardID uuid.UUID) ([]domain.FeedUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.boards[boardID]; !ok {
		return nil, domain.ErrBoardNotFound
	}
	var feeds []domain.Feed
	for _, feed := range f.feeds {
		if feed.BoardID == boardID {
			feeds = append(feeds, feed)
		}
	}
	sort.Slice(feeds, func(i, j int) bool { return feeds[i].CreatedAt.Before(feeds[j].CreatedAt) })
	var usage []domain.FeedUsage
	for i, feed := range feeds {
		count := 0
		for _, entry := range f.diet {
			if entry.FeedID != feed.ID || !entry.Active() {
				continue
			}
			if horse, ok := f.horses[entry.HorseID]; ok && !horse.Archived {
				count++
			}
		}
		usage = append(usage, domain.FeedUsage{FeedID: feed.ID, ActiveHorses: count, Position: i})
	}
	return usage, nil
}

type fakeSnapshotRepo struct{ *fakeStore }

func (f fakeSnapshotRepo) Snapshot(ctx context.Context, boardID uuid.UUID) (domain.BoardSnapshot, error) {
	board, err := f.Get(ctx, boardID)
	if err != nil {
		return domain.BoardSnapshot{}, err
	}
	horses, _ := f.ListByBoard(ctx, boardID)
	feeds, _ := fakeFeedRepo{f.fakeStore}.ListByBoard(ctx, boardID)
	diet, _ := fakeDietRepo{f.fakeStore}.ListByBoard(ctx, boardID)
	return domain.BoardSnapshot{Board: board, Horses: horses, Feeds: feeds, Diet: diet}, nil
}

// recordingHub forwards to a real hub while recording every broadcast event.
type recordingHub struct {
	*broadcast.Hub
	mu     sync.Mutex
	events []domain.Event
}

func (h *recordingHub) Broadcast(boardID uuid.UUID, event domain.Event) {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
	h.Hub.Broadcast(boardID, event)
}

func (h *recordingHub) recorded() []domain.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.Event, len(h.events))
	copy(out, h.events)
	return out
}

func (h *recordingHub) lastEvent(t *testing.T) domain.Event {
	t.Helper()
	events := h.recorded()
	require.NotEmpty(t, events, "expected at least one broadcast event")
	return events[len(events)-1]
}

// fakeRanks records debounce triggers.
type fakeRanks struct {
	mu       sync.Mutex
	triggers []uuid.UUID
}

func (f *fakeRanks) Trigger(boardID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, boardID)
}

func (f *fakeRanks) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.triggers)
}

type fakeHealth struct{ err error }

func (f fakeHealth) Health(ctx context.Context) error { return f.err }

type testEnv struct {
	srv   *Server
	store *fakeStore
	hub   *recordingHub
	ranks *fakeRanks
	clock *clockwork.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testBase)
	store := newFakeStore(clock)
	hub := &recordingHub{Hub: broadcast.NewHub(clock)}
	t.Cleanup(hub.Stop)
	ranks := &fakeRanks{}

	cfg := &config.Config{Port: "0", DefaultTimezone: "UTC"}
	repos := Repositories{
		Boards:    store,
		Horses:    fakeHorseRepo{store},
		Feeds:     fakeFeedRepo{store},
		Diet:      fakeDietRepo{store},
		Snapshots: fakeSnapshotRepo{store},
	}
	srv := NewServer(cfg, repos, hub, ranks, fakeHealth{}, clock)

	return &testEnv{srv: srv, store: store, hub: hub, ranks: ranks, clock: clock}
}

// request runs one HTTP round trip through the full echo stack, middleware
// included, and returns the recorder.
func (e *testEnv) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.echo.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	require.True(t, env.Success, "expected success envelope, got error: %s", env.Error)
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (e *testEnv) seedBoard(t *testing.T) domain.Board {
	t.Helper()
	board, err := e.store.Create(context.Background(), "UTC")
	require.NoError(t, err)
	return board
}

func (e *testEnv) seedHorse(t *testing.T, boardID uuid.UUID, name string) domain.Horse {
	t.Helper()
	horse, err := e.store.CreateHorse(context.Background(), boardID, name)
	require.NoError(t, err)
	return horse
}

func (e *testEnv) seedFeed(t *testing.T, boardID uuid.UUID, name string) domain.Feed {
	t.Helper()
	feed, err := fakeFeedRepo{e.store}.Create(context.Background(), boardID, name, "kg")
	require.NoError(t, err)
	return feed
}

func ptr[T any](v T) *T { return &v }
