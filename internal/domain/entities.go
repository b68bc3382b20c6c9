package domain

import (
	"time"

	"github.com/google/uuid"
)

// Horse is one row of the feed board.
type Horse struct {
	ID         uuid.UUID  `json:"id"`
	BoardID    uuid.UUID  `json:"board_id"`
	Name       string     `json:"name"`
	Note       *string    `json:"note,omitempty"`
	NoteExpiry *time.Time `json:"note_expiry,omitempty"`
	Archived   bool       `json:"archived"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (h Horse) StoreKey() string       { return h.ID.String() }
func (h Horse) UpdatedTime() time.Time { return h.UpdatedAt }

// NoteExpired reports whether the horse carries a note whose expiry has
// passed. Such notes are cleared by the scheduler sweep.
func (h Horse) NoteExpired(now time.Time) bool {
	return h.Note != nil && h.NoteExpiry != nil && h.NoteExpiry.Before(now)
}

// Feed is one column of the feed board. Rank orders feeds by popularity,
// 1 being the most relevant; it is recomputed after diet mutations.
type Feed struct {
	ID          uuid.UUID `json:"id"`
	BoardID     uuid.UUID `json:"board_id"`
	Name        string    `json:"name"`
	Unit        string    `json:"unit"`
	Rank        int       `json:"rank"`
	StockLevel  *float64  `json:"stock_level,omitempty"`
	StockWarnAt *float64  `json:"stock_warn_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (f Feed) StoreKey() string       { return f.ID.String() }
func (f Feed) UpdatedTime() time.Time { return f.UpdatedAt }

// DietField names one of the two amount columns of a diet entry.
type DietField string

const (
	DietFieldAM DietField = "am_amount"
	DietFieldPM DietField = "pm_amount"
)

// ValidDietField reports whether s names a diet amount column.
func ValidDietField(s string) bool {
	return DietField(s) == DietFieldAM || DietField(s) == DietFieldPM
}

// DietEntry is the amount of one feed for one horse, keyed by the
// (horse, feed) pair. An entry exists while at least one amount is non-nil.
type DietEntry struct {
	HorseID   uuid.UUID `json:"horse_id"`
	FeedID    uuid.UUID `json:"feed_id"`
	AMAmount  *float64  `json:"am_amount"`
	PMAmount  *float64  `json:"pm_amount"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d DietEntry) StoreKey() string       { return DietKey(d.HorseID, d.FeedID) }
func (d DietEntry) UpdatedTime() time.Time { return d.UpdatedAt }

// Empty reports whether both amounts are nil, meaning the entry is
// logically removed.
func (d DietEntry) Empty() bool {
	return d.AMAmount == nil && d.PMAmount == nil
}

// Active reports whether the entry carries at least one non-nil non-zero
// amount, which is what counts toward feed usage.
func (d DietEntry) Active() bool {
	return (d.AMAmount != nil && *d.AMAmount != 0) || (d.PMAmount != nil && *d.PMAmount != 0)
}

// DietKey builds the composite store key for a (horse, feed) pair.
func DietKey(horseID, feedID uuid.UUID) string {
	return horseID.String() + ":" + feedID.String()
}
