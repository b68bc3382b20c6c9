// Package server exposes the REST surface and the SSE push channel of the
// board service. Every mutating handler writes through the repositories and
// then broadcasts the change to the board's subscribers, so displays converge
// without polling.
package server
