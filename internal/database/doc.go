// Package database implements the PostgreSQL repositories behind the
// domain interfaces. All writes read the affected row back in the same
// statement or transaction, so a payload handed to the broadcast path is
// never older than the write that produced it.
package database
