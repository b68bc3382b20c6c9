package domain

// UpdateSource tags a store mutation with where the value came from.
// It governs arbitration and is never persisted.
type UpdateSource int

const (
	// SourceAPI marks values taken from a REST response.
	SourceAPI UpdateSource = iota
	// SourcePush marks values delivered over the push channel. Push is
	// authoritative and wins arbitration regardless of timestamps.
	SourcePush
	// SourceLocal marks optimistic local edits awaiting server confirmation.
	SourceLocal
)

func (s UpdateSource) String() string {
	switch s {
	case SourceAPI:
		return "api"
	case SourcePush:
		return "push"
	case SourceLocal:
		return "local"
	default:
		return "unknown"
	}
}
