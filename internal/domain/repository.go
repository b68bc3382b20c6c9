package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BoardPatch is a partial board update. Nil fields are left untouched.
type BoardPatch struct {
	Timezone    *string
	ZoomLevel   *int
	CurrentPage *int
}

// HorsePatch is a partial horse update. Nil fields are left untouched;
// the Clear flags set the corresponding nullable column to NULL.
type HorsePatch struct {
	Name            *string
	Note            *string
	ClearNote       bool
	NoteExpiry      *time.Time
	ClearNoteExpiry bool
	Archived        *bool
}

// FeedPatch is a partial feed update.
type FeedPatch struct {
	Name           *string
	Unit           *string
	StockLevel     *float64
	ClearStock     bool
	StockWarnAt    *float64
	ClearStockWarn bool
}

// BoardRepository is the canonical store for boards.
type BoardRepository interface {
	Create(ctx context.Context, timezone string) (Board, error)
	Get(ctx context.Context, id uuid.UUID) (Board, error)
	GetByPairCode(ctx context.Context, code string) (Board, error)
	Update(ctx context.Context, id uuid.UUID, patch BoardPatch) (Board, error)
	// SetTimeMode sets a manual override (until non-nil) or restores AUTO.
	SetTimeMode(ctx context.Context, id uuid.UUID, mode TimeMode, until *time.Time) (Board, error)
	// ListExpiredOverrides returns ids of boards whose manual override has
	// lapsed as of now.
	ListExpiredOverrides(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	// ResetOverride restores AUTO mode and clears the override expiry,
	// returning the updated board. A board deleted since selection yields
	// ErrBoardNotFound.
	ResetOverride(ctx context.Context, id uuid.UUID) (Board, error)
}

// HorseRepository is the canonical store for horses.
type HorseRepository interface {
	ListByBoard(ctx context.Context, boardID uuid.UUID) ([]Horse, error)
	Create(ctx context.Context, boardID uuid.UUID, name string) (Horse, error)
	Update(ctx context.Context, id uuid.UUID, patch HorsePatch) (Horse, error)
	// Delete removes the horse and, by cascade, its diet entries. The
	// deleted row is returned so callers can address its board.
	Delete(ctx context.Context, id uuid.UUID) (Horse, error)
	// ListExpiredNotes returns horses whose note expiry has lapsed.
	ListExpiredNotes(ctx context.Context, now time.Time) ([]Horse, error)
	// ClearNote nulls the note and its expiry, returning the updated horse.
	// A horse deleted since selection yields ErrHorseNotFound.
	ClearNote(ctx context.Context, id uuid.UUID) (Horse, error)
}

// FeedRepository is the canonical store for feeds.
type FeedRepository interface {
	ListByBoard(ctx context.Context, boardID uuid.UUID) ([]Feed, error)
	Create(ctx context.Context, boardID uuid.UUID, name, unit string) (Feed, error)
	Update(ctx context.Context, id uuid.UUID, patch FeedPatch) (Feed, error)
	Delete(ctx context.Context, id uuid.UUID) (Feed, error)
	// UpdateRanks persists the given rank order (index 0 becomes rank 1)
	// in one transaction.
	UpdateRanks(ctx context.Context, boardID uuid.UUID, orderedIDs []uuid.UUID) error
}

// DietRepository is the canonical store for diet entries.
type DietRepository interface {
	ListByBoard(ctx context.Context, boardID uuid.UUID) ([]DietEntry, error)
	// UpsertAmount merges one amount field into the (horse, feed) entry,
	// creating it on first non-nil write and deleting it once both fields
	// are nil. removed reports the deletion case.
	UpsertAmount(ctx context.Context, horseID, feedID uuid.UUID, field DietField, value *float64) (entry DietEntry, removed bool, err error)
	// UsageCounts returns per-feed active-horse counts for one board, in
	// feed insertion order.
	UsageCounts(ctx context.Context, boardID uuid.UUID) ([]FeedUsage, error)
}

// SnapshotRepository reads the complete state of one board in a single
// consistent view. Broadcast baselines must come from here so a payload is
// never older than the write that triggered it.
type SnapshotRepository interface {
	Snapshot(ctx context.Context, boardID uuid.UUID) (BoardSnapshot, error)
}
