// Package domain holds the feed board entities, the push event types, and
// the repository interfaces shared by the server and client sides.
package domain
