package broadcast

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/aornugent/horseboard-sub002/internal/domain"
	"github.com/aornugent/horseboard-sub002/internal/metrics"
)

const (
	keepaliveInterval      = 30 * time.Second
	maxSubscribersPerBoard = 64
	frameBufferSize        = 32
)

// Subscriber is one open push connection. The HTTP handler drains Frames
// and stops when Done closes (eviction or hub shutdown).
type Subscriber struct {
	boardID uuid.UUID
	frames  chan []byte
	done    chan struct{}
	once    sync.Once
}

// Frames returns the channel of pre-encoded SSE frames to write.
func (s *Subscriber) Frames() <-chan []byte { return s.frames }

// Done closes when the hub has dropped this subscriber.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// BoardID returns the board this subscriber watches.
func (s *Subscriber) BoardID() uuid.UUID { return s.boardID }

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	sub   *Subscriber
	reply chan error
}

type unregisterCmd struct {
	baseHubCmd
	sub *Subscriber
}

type broadcastCmd struct {
	baseHubCmd
	boardID uuid.UUID
	frame   []byte
}

type countCmd struct {
	baseHubCmd
	boardID uuid.UUID
	reply   chan int
}

type stopCmd struct{ baseHubCmd }

// Hub is the per-board registry of open push connections. A single actor
// goroutine owns the registry; fan-out for one board is independent of
// other boards and a mid-broadcast disconnect cannot corrupt delivery.
type Hub struct {
	cmdCh  chan hubCmd
	clock  clockwork.Clock
	boards map[uuid.UUID]map[*Subscriber]struct{}
	done   chan struct{}
}

// NewHub creates the hub and starts its actor goroutine. The keepalive
// ticker runs on the injected clock.
func NewHub(clock clockwork.Clock) *Hub {
	h := &Hub{
		cmdCh:  make(chan hubCmd, 256),
		clock:  clock,
		boards: make(map[uuid.UUID]map[*Subscriber]struct{}),
		done:   make(chan struct{}),
	}
	go h.run()
	return h
}

// Register adds a subscriber for boardID. The subscriber starts receiving
// incremental frames immediately, so a handler that writes its snapshot
// after registering cannot miss an event in between.
func (h *Hub) Register(boardID uuid.UUID) (*Subscriber, error) {
	sub := &Subscriber{
		boardID: boardID,
		frames:  make(chan []byte, frameBufferSize),
		done:    make(chan struct{}),
	}
	reply := make(chan error, 1)
	select {
	case h.cmdCh <- registerCmd{sub: sub, reply: reply}:
	case <-h.done:
		return nil, fmt.Errorf("hub stopped")
	}
	select {
	case err := <-reply:
		if err != nil {
			return nil, err
		}
		return sub, nil
	case <-h.done:
		return nil, fmt.Errorf("hub stopped")
	}
}

// Unregister removes a subscriber. Safe to call more than once; the HTTP
// handler defers it so a closed transport never leaks a dead handle.
func (h *Hub) Unregister(sub *Subscriber) {
	select {
	case h.cmdCh <- unregisterCmd{sub: sub}:
	case <-h.done:
	}
}

// Broadcast serializes the event once and delivers it to every subscriber
// of the board. A slow subscriber is evicted; delivery to the others
// continues.
func (h *Hub) Broadcast(boardID uuid.UUID, event domain.Event) {
	frame, err := EncodeFrame(event)
	if err != nil {
		slog.Error("failed to encode push event", "board_id", boardID, "type", event.Type, "error", err)
		return
	}
	metrics.PushEventsTotal.WithLabelValues(string(event.Type)).Inc()
	select {
	case h.cmdCh <- broadcastCmd{boardID: boardID, frame: frame}:
	case <-h.done:
	}
}

// SubscriberCount returns the number of open connections for a board.
func (h *Hub) SubscriberCount(boardID uuid.UUID) int {
	reply := make(chan int, 1)
	select {
	case h.cmdCh <- countCmd{boardID: boardID, reply: reply}:
	case <-h.done:
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-h.done:
		return 0
	}
}

// Stop shuts the hub down, dropping every subscriber.
func (h *Hub) Stop() {
	select {
	case h.cmdCh <- stopCmd{}:
	case <-h.done:
		return
	}
	<-h.done
}

func (h *Hub) run() {
	keepalive := h.clock.NewTicker(keepaliveInterval)
	defer keepalive.Stop()
	defer close(h.done)

	for {
		select {
		case cmd := <-h.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				h.handleRegister(c)
			case unregisterCmd:
				h.drop(c.sub)
			case broadcastCmd:
				h.handleBroadcast(c.boardID, c.frame)
			case countCmd:
				c.reply <- len(h.boards[c.boardID])
			case stopCmd:
				h.handleStop()
				return
			}
		case <-keepalive.Chan():
			h.handleKeepalive()
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	subs, ok := h.boards[c.sub.boardID]
	if !ok {
		subs = make(map[*Subscriber]struct{})
		h.boards[c.sub.boardID] = subs
	}
	if len(subs) >= maxSubscribersPerBoard {
		slog.Warn("rejecting push subscriber: board at capacity",
			"board_id", c.sub.boardID, "max", maxSubscribersPerBoard)
		c.reply <- fmt.Errorf("max subscribers per board (%d) reached", maxSubscribersPerBoard)
		return
	}
	subs[c.sub] = struct{}{}
	metrics.PushSubscribers.Inc()
	slog.Debug("push subscriber registered", "board_id", c.sub.boardID, "total", len(subs))
	c.reply <- nil
}

func (h *Hub) drop(sub *Subscriber) {
	subs, ok := h.boards[sub.boardID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	sub.close()
	metrics.PushSubscribers.Dec()
	if len(subs) == 0 {
		delete(h.boards, sub.boardID)
	}
}

func (h *Hub) handleBroadcast(boardID uuid.UUID, frame []byte) {
	subs := h.boards[boardID]
	if len(subs) == 0 {
		return
	}

	// Collect slow subscribers first: evicting while ranging over the same
	// map would skip entries.
	var slow []*Subscriber
	for sub := range subs {
		select {
		case sub.frames <- frame:
		default:
			slow = append(slow, sub)
		}
	}
	for _, sub := range slow {
		slog.Warn("evicting slow push subscriber", "board_id", boardID)
		metrics.PushSlowEvictionsTotal.Inc()
		h.drop(sub)
	}
}

func (h *Hub) handleKeepalive() {
	for boardID, subs := range h.boards {
		var slow []*Subscriber
		for sub := range subs {
			select {
			case sub.frames <- KeepaliveFrame:
			default:
				slow = append(slow, sub)
			}
		}
		for _, sub := range slow {
			slog.Warn("evicting slow push subscriber on keepalive", "board_id", boardID)
			metrics.PushSlowEvictionsTotal.Inc()
			h.drop(sub)
		}
	}
	metrics.PushKeepalivesTotal.Inc()
}

func (h *Hub) handleStop() {
	total := 0
	for _, subs := range h.boards {
		for sub := range subs {
			sub.close()
			total++
		}
	}
	h.boards = make(map[uuid.UUID]map[*Subscriber]struct{})
	metrics.PushSubscribers.Set(0)
	slog.Info("push hub stopped", "dropped_subscribers", total)
}
