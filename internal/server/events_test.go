package server

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aornugent/horseboard-sub002/internal/domain"
)

// readEvent consumes one SSE frame and returns the decoded event. Comment
// frames (keepalives) are returned as a zero event with ok=false.
func readEvent(t *testing.T, r *bufio.Reader) (domain.Event, bool) {
	t.Helper()
	var data []string
	comment := false
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, ":") {
			comment = true
			continue
		}
		if after, ok := strings.CutPrefix(line, "data: "); ok {
			data = append(data, after)
		}
	}
	if comment && len(data) == 0 {
		return domain.Event{}, false
	}
	var event domain.Event
	require.NoError(t, json.Unmarshal([]byte(strings.Join(data, "\n")), &event))
	return event, true
}

func waitForSubscriber(t *testing.T, env *testEnv, boardID uuid.UUID) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for env.hub.SubscriberCount(boardID) == 0 {
		select {
		case <-deadline:
			t.Fatal("subscriber never registered")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestEventsStreamSendsSnapshotFirst(t *testing.T) {
	env := newTestEnv(t)
	board := env.seedBoard(t)
	horse := env.seedHorse(t, board.ID, "Dusty")
	env.seedFeed(t, board.ID, "Oats")

	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/boards/" + board.ID.String() + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)

	snapshot, ok := readEvent(t, reader)
	require.True(t, ok)
	assert.Equal(t, domain.EventFull, snapshot.Type)
	require.NotNil(t, snapshot.Data.Board)
	assert.Equal(t, board.ID, snapshot.Data.Board.ID)
	require.Len(t, snapshot.Data.Horses, 1)
	assert.Equal(t, horse.ID, snapshot.Data.Horses[0].ID)

	// A broadcast after connect arrives as the next frame.
	updated := *snapshot.Data.Board
	updated.ZoomLevel = 4
	env.hub.Broadcast(board.ID, domain.NewStateEvent(updated, env.clock.Now()))

	next, ok := readEvent(t, reader)
	require.True(t, ok)
	assert.Equal(t, domain.EventState, next.Type)
	assert.Equal(t, 4, next.Data.Board.ZoomLevel)
}

func TestEventsStreamUnknownBoard(t *testing.T) {
	env := newTestEnv(t)

	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/boards/" + uuid.NewString() + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEventsStreamKeepalive(t *testing.T) {
	env := newTestEnv(t)
	board := env.seedBoard(t)

	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/boards/" + board.ID.String() + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	_, ok := readEvent(t, reader)
	require.True(t, ok)

	waitForSubscriber(t, env, board.ID)
	env.clock.Advance(31 * time.Second)

	_, ok = readEvent(t, reader)
	assert.False(t, ok, "keepalive frame should carry no event")
}
