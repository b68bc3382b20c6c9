// Package store implements the client-side reconciling caches. Every
// mutation carries an UpdateSource; arbitration decides whether an incoming
// value replaces the stored one. Push-sourced values always win, everything
// else is last-writer-wins on updated_at, so an API response and a push
// event for the same entity converge to the same state regardless of
// arrival order.
package store
