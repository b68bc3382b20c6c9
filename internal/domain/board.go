package domain

import (
	"time"

	"github.com/google/uuid"
)

// TimeMode selects which half of the feed board a display shows.
type TimeMode string

const (
	TimeModeAuto TimeMode = "AUTO"
	TimeModeAM   TimeMode = "AM"
	TimeModePM   TimeMode = "PM"
)

// ParseTimeMode converts a string to a TimeMode, defaulting to AUTO.
func ParseTimeMode(s string) TimeMode {
	switch s {
	case "AM":
		return TimeModeAM
	case "PM":
		return TimeModePM
	default:
		return TimeModeAuto
	}
}

// Board is the shared configuration entity anchoring one display and its
// paired controllers. There is exactly one board per pairing code.
type Board struct {
	ID            uuid.UUID  `json:"id"`
	PairCode      string     `json:"pair_code"`
	TimeMode      TimeMode   `json:"time_mode"`
	OverrideUntil *time.Time `json:"override_until,omitempty"`
	Timezone      string     `json:"timezone"`
	ZoomLevel     int        `json:"zoom_level"`
	CurrentPage   int        `json:"current_page"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (b Board) StoreKey() string       { return b.ID.String() }
func (b Board) UpdatedTime() time.Time { return b.UpdatedAt }

// amStartHour..amEndHour is the local-time window treated as morning when
// the board runs in AUTO mode.
const (
	amStartHour = 4
	amEndHour   = 12
)

// EffectiveTimeMode resolves the mode a display should show at the given
// instant. A manual override is honored only while now is strictly before
// OverrideUntil; otherwise the mode is derived from the local hour in the
// board's timezone. An unknown or empty timezone falls back to UTC.
func (b Board) EffectiveTimeMode(now time.Time) TimeMode {
	if b.TimeMode != TimeModeAuto && b.OverrideUntil != nil && now.Before(*b.OverrideUntil) {
		return b.TimeMode
	}

	loc := time.UTC
	if b.Timezone != "" {
		if l, err := time.LoadLocation(b.Timezone); err == nil {
			loc = l
		}
	}

	hour := now.In(loc).Hour()
	if hour >= amStartHour && hour < amEndHour {
		return TimeModeAM
	}
	return TimeModePM
}

// OverrideExpired reports whether the board carries a manual override whose
// expiry has passed. Such boards are reset to AUTO by the scheduler sweep.
func (b Board) OverrideExpired(now time.Time) bool {
	return b.TimeMode != TimeModeAuto && b.OverrideUntil != nil && b.OverrideUntil.Before(now)
}
