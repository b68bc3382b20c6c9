// Package pushclient consumes the one-way push channel on the client side.
// Incoming events are validated and applied to the local stores with push
// authority; a malformed frame is logged and dropped without closing the
// channel. Transport errors trigger reconnection with exponential backoff,
// and exhaustion is surfaced only through the connection state, never as an
// error from inside the event loop.
package pushclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sethvargo/go-retry"

	"github.com/aornugent/horseboard-sub002/internal/domain"
	"github.com/aornugent/horseboard-sub002/internal/metrics"
	"github.com/aornugent/horseboard-sub002/internal/store"
)

// State is the connection state of the push channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	// StateFailed means reconnection attempts are exhausted. The client
	// stays silent; the UI is expected to show a connection-lost indicator.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	defaultBaseDelay   = time.Second
	defaultMaxAttempts = 8
)

// Config wires a Client.
type Config struct {
	BaseURL     string
	Stores      *store.Set
	HTTPClient  *http.Client    // defaults to http.DefaultClient
	Clock       clockwork.Clock // defaults to the real clock
	BaseDelay   time.Duration   // first reconnect delay, doubles per attempt
	MaxAttempts uint64          // reconnect attempts before giving up
	// OnStateChange observes connection state transitions. Optional.
	OnStateChange func(State)
	// OnRefetch is invoked when a granular event omits its data, signalling
	// that the resource should be re-fetched via REST. Optional.
	OnRefetch func(domain.EventType)
}

// Client maintains one persistent push channel per board.
type Client struct {
	baseURL     string
	httpc       *http.Client
	stores      *store.Set
	clock       clockwork.Clock
	baseDelay   time.Duration
	maxAttempts uint64
	onState     func(State)
	onRefetch   func(domain.EventType)

	mu      sync.Mutex
	state   State
	boardID uuid.UUID
	active  bool
	cancel  context.CancelFunc
	timer   clockwork.Timer
	backoff retry.Backoff
}

// New creates a push client. Connect starts it.
func New(cfg Config) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpc:       cfg.HTTPClient,
		stores:      cfg.Stores,
		clock:       cfg.Clock,
		baseDelay:   cfg.BaseDelay,
		maxAttempts: cfg.MaxAttempts,
		onState:     cfg.OnStateChange,
		onRefetch:   cfg.OnRefetch,
		state:       StateDisconnected,
	}
	if c.httpc == nil {
		c.httpc = http.DefaultClient
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.baseDelay <= 0 {
		c.baseDelay = defaultBaseDelay
	}
	if c.maxAttempts == 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	return c
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the push channel for boardID. It returns once the channel
// is confirmed open. A dial failure is returned to the caller, but the
// client keeps retrying in the background until the attempt cap is reached.
func (c *Client) Connect(ctx context.Context, boardID uuid.UUID) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return fmt.Errorf("push client already connected")
	}
	c.active = true
	c.boardID = boardID
	c.backoff = newBackoff(c.baseDelay, c.maxAttempts)
	streamCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	body, err := c.dial(streamCtx, boardID)
	if err != nil {
		c.streamFailed(err)
		return err
	}

	c.mu.Lock()
	c.setStateLocked(StateConnected)
	c.mu.Unlock()
	go c.readLoop(streamCtx, body)
	return nil
}

// Disconnect closes the transport, cancels any pending reconnect timer,
// resets the attempt counter and clears the board id. Idempotent; this is
// the only transition into the terminal Disconnected state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.active = false
	c.boardID = uuid.Nil
	c.backoff = nil
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()
}

func newBackoff(base time.Duration, maxAttempts uint64) retry.Backoff {
	return retry.WithMaxRetries(maxAttempts, retry.NewExponential(base))
}

// dial opens the SSE response and verifies it before handing the body to
// the read loop.
func (c *Client) dial(ctx context.Context, boardID uuid.UUID) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/api/boards/%s/events", c.baseURL, boardID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open push channel: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("open push channel: unexpected status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		return nil, fmt.Errorf("open push channel: unexpected content type %q", ct)
	}
	return resp.Body, nil
}

// readLoop parses SSE frames until the stream breaks or the client
// disconnects. Comment lines (keepalives) are ignored; data lines of one
// frame are joined and dispatched on the blank separator line.
func (c *Client) readLoop(ctx context.Context, body io.ReadCloser) {
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				c.dispatch(data.Bytes())
				data.Reset()
			}
		case strings.HasPrefix(line, ":"):
			// Heartbeat comment; carries no state.
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// Unknown SSE field (event:, id:, retry:). Not part of the
			// protocol this server speaks, skip it.
		}
	}

	if ctx.Err() != nil {
		return // explicit disconnect
	}
	err := scanner.Err()
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	c.streamFailed(err)
}

// dispatch validates one frame and applies it to the stores as a single
// batch. Malformed frames are dropped without closing the channel.
func (c *Client) dispatch(raw []byte) {
	var event domain.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		slog.Warn("discarding malformed push frame", "error", err)
		return
	}
	if err := event.Validate(); err != nil {
		slog.Warn("discarding invalid push event", "error", err)
		return
	}

	for _, resource := range c.stores.ApplyEvent(event) {
		if c.onRefetch != nil {
			c.onRefetch(resource)
		}
	}
}

// streamFailed schedules the next reconnect attempt, or goes silent once
// the attempt cap is exhausted.
func (c *Client) streamFailed(cause error) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}

	delay, stop := c.backoff.Next()
	if stop {
		c.setStateLocked(StateFailed)
		c.mu.Unlock()
		slog.Warn("push channel reconnect attempts exhausted", "error", cause)
		return
	}

	c.setStateLocked(StateReconnecting)
	c.timer = c.clock.AfterFunc(delay, c.redial)
	c.mu.Unlock()
	metrics.ClientReconnectsTotal.Inc()
	slog.Info("push channel lost, reconnecting", "delay", delay, "error", cause)
}

func (c *Client) redial() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	boardID := c.boardID
	streamCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	body, err := c.dial(streamCtx, boardID)
	if err != nil {
		c.streamFailed(err)
		return
	}

	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		body.Close()
		return
	}
	// Fresh connection: later failures start the backoff schedule over.
	c.backoff = newBackoff(c.baseDelay, c.maxAttempts)
	c.setStateLocked(StateConnected)
	c.mu.Unlock()
	go c.readLoop(streamCtx, body)
}

func (c *Client) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if c.onState != nil {
		// Callbacks run without the lock to keep them free to call back
		// into the client.
		go c.onState(s)
	}
}
