// Package broadcast implements the server-side push fan-out using the actor
// pattern: a single goroutine owns the board-to-subscribers registry and is
// driven through a command channel, so registry mutation and broadcast
// iteration can never corrupt each other. Frames are pre-encoded SSE bytes;
// each subscriber drains its own buffered channel from the HTTP handler, and
// a subscriber that falls behind is evicted without disturbing the rest.
package broadcast
