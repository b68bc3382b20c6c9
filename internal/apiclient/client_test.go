package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aornugent/horseboard-sub002/internal/domain"
	"github.com/aornugent/horseboard-sub002/internal/store"
)

func envelopeOK(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data}))
}

func TestRedeemPairCodeSeedsBoardStore(t *testing.T) {
	boardID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/pair", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ABC123", body["pair_code"])
		envelopeOK(t, w, domain.Board{ID: boardID, PairCode: "ABC123", TimeMode: domain.TimeModeAuto, UpdatedAt: time.Now()})
	}))
	t.Cleanup(srv.Close)

	stores := store.NewSet(clockwork.NewRealClock())
	c := New(srv.URL, nil, stores, nil)

	board, err := c.RedeemPairCode(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, boardID, board.ID)

	stored, ok := stores.Board.Get()
	require.True(t, ok)
	assert.Equal(t, boardID, stored.ID)
}

func TestUnauthorizedFiresSessionInvalidHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	stores := store.NewSet(clockwork.NewRealClock())
	fired := 0
	c := New(srv.URL, nil, stores, func() { fired++ })

	_, err := c.RedeemPairCode(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrSessionInvalid)
	assert.Equal(t, 1, fired)
}

func TestErrorEnvelopeIsSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "board not found"})
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, nil, store.NewSet(clockwork.NewRealClock()), nil)
	err := c.FetchBoard(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "board not found")
}

func TestFetchBoardMergesWithoutClobberingNewerPush(t *testing.T) {
	boardID := uuid.New()
	horseID := uuid.New()
	older := time.Now().Add(-time.Minute)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		envelopeOK(t, w, domain.BoardSnapshot{
			Board:  domain.Board{ID: boardID, UpdatedAt: older},
			Horses: []domain.Horse{{ID: horseID, BoardID: boardID, Name: "rest value", UpdatedAt: older}},
		})
	}))
	t.Cleanup(srv.Close)

	stores := store.NewSet(clockwork.NewRealClock())

	// A push event already delivered a newer value for the same horse.
	newer := time.Now()
	stores.Horses.Upsert(domain.Horse{ID: horseID, BoardID: boardID, Name: "push value", UpdatedAt: newer}, domain.SourcePush)

	c := New(srv.URL, nil, stores, nil)
	require.NoError(t, c.FetchBoard(context.Background(), boardID))

	horse, ok := stores.Horses.Get(horseID.String())
	require.True(t, ok)
	assert.Equal(t, "push value", horse.Name, "stale REST response must lose arbitration")
}

func TestUpsertDietAmountIsOptimisticThenReconciled(t *testing.T) {
	boardID, horseID, feedID := uuid.New(), uuid.New(), uuid.New()
	am := 2.5
	serverAM := 3.0 // server echoes a corrected value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		envelopeOK(t, w, dietUpsertResponse{Entry: &domain.DietEntry{
			HorseID: horseID, FeedID: feedID, AMAmount: &serverAM, UpdatedAt: time.Now().Add(time.Second),
		}})
	}))
	t.Cleanup(srv.Close)

	stores := store.NewSet(clockwork.NewRealClock())
	c := New(srv.URL, nil, stores, nil)

	require.NoError(t, c.UpsertDietAmount(context.Background(), boardID, horseID, feedID, domain.DietFieldAM, &am))

	entry, ok := stores.Diet.Entry(horseID, feedID)
	require.True(t, ok)
	assert.Equal(t, serverAM, *entry.AMAmount, "server response supersedes the optimistic write")
}

func TestDeleteHorseCascadesLocally(t *testing.T) {
	horseID, feedID := uuid.New(), uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		envelopeOK(t, w, nil)
	}))
	t.Cleanup(srv.Close)

	stores := store.NewSet(clockwork.NewRealClock())
	stores.Horses.Upsert(domain.Horse{ID: horseID, UpdatedAt: time.Now()}, domain.SourceAPI)
	amount := 1.0
	stores.Diet.UpdateAmount(horseID, feedID, domain.DietFieldAM, &amount, domain.SourceLocal)

	c := New(srv.URL, nil, stores, nil)
	require.NoError(t, c.DeleteHorse(context.Background(), horseID))

	assert.Zero(t, stores.Horses.Len())
	assert.Zero(t, stores.Diet.Len())
}
