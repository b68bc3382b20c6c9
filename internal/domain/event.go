package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType discriminates push channel payloads.
type EventType string

const (
	// EventFull carries board + horses + feeds + diet together. It is the
	// only event type that deletes by omission: ids absent from the payload
	// are removed from client stores.
	EventFull EventType = "full"
	// EventState carries the board configuration alone.
	EventState EventType = "state"
	// EventData carries horses + feeds + diet without the board.
	EventData EventType = "data"
	// EventHorses, EventFeeds and EventDiet carry one resource array each.
	// They are upsert-only; a nil Data signals the client to re-fetch that
	// resource via REST.
	EventHorses EventType = "horses"
	EventFeeds  EventType = "feeds"
	EventDiet   EventType = "diet"
)

// EventPayload is the data of a push event. Which fields are populated is
// determined by the event type; Validate enforces the pairing.
type EventPayload struct {
	Board  *Board      `json:"board,omitempty"`
	Horses []Horse     `json:"horses,omitempty"`
	Feeds  []Feed      `json:"feeds,omitempty"`
	Diet   []DietEntry `json:"diet,omitempty"`
}

// Event is one frame of the push channel.
type Event struct {
	Type      EventType     `json:"type"`
	Data      *EventPayload `json:"data,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Validate checks that the event type is known and that the payload shape
// matches it. Granular events may omit Data to signal a re-fetch; full and
// state events must carry theirs.
func (e Event) Validate() error {
	switch e.Type {
	case EventFull:
		if e.Data == nil || e.Data.Board == nil {
			return fmt.Errorf("full event missing board payload")
		}
	case EventState:
		if e.Data == nil || e.Data.Board == nil {
			return fmt.Errorf("state event missing board payload")
		}
	case EventData, EventHorses, EventFeeds, EventDiet:
		// Data may be nil: re-fetch signal.
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}

// BoardSnapshot is the complete state of one board, as read in a single
// repository view. It backs full events and the connect-time baseline.
type BoardSnapshot struct {
	Board  Board       `json:"board"`
	Horses []Horse     `json:"horses"`
	Feeds  []Feed      `json:"feeds"`
	Diet   []DietEntry `json:"diet"`
}

// NewFullEvent wraps a snapshot into a full push event.
func NewFullEvent(snap BoardSnapshot, now time.Time) Event {
	board := snap.Board
	return Event{
		Type: EventFull,
		Data: &EventPayload{
			Board:  &board,
			Horses: snap.Horses,
			Feeds:  snap.Feeds,
			Diet:   snap.Diet,
		},
		Timestamp: now,
	}
}

// NewStateEvent wraps a board configuration into a state push event.
func NewStateEvent(board Board, now time.Time) Event {
	return Event{Type: EventState, Data: &EventPayload{Board: &board}, Timestamp: now}
}

// NewHorsesEvent wraps horses into an upsert-only granular event.
func NewHorsesEvent(horses []Horse, now time.Time) Event {
	return Event{Type: EventHorses, Data: &EventPayload{Horses: horses}, Timestamp: now}
}

// NewFeedsEvent wraps feeds into an upsert-only granular event.
func NewFeedsEvent(feeds []Feed, now time.Time) Event {
	return Event{Type: EventFeeds, Data: &EventPayload{Feeds: feeds}, Timestamp: now}
}

// NewDietEvent wraps diet entries into an upsert-only granular event.
func NewDietEvent(diet []DietEntry, now time.Time) Event {
	return Event{Type: EventDiet, Data: &EventPayload{Diet: diet}, Timestamp: now}
}

// NewRefetchEvent signals subscribers to re-fetch one resource via REST.
func NewRefetchEvent(t EventType, now time.Time) Event {
	return Event{Type: t, Timestamp: now}
}

// FeedUsage is one feed's popularity measure used by rank recomputation:
// the number of distinct unarchived horses with at least one non-nil
// non-zero amount. Position preserves insertion order for tie-breaking.
type FeedUsage struct {
	FeedID       uuid.UUID
	ActiveHorses int
	Position     int
}
