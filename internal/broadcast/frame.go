package broadcast

import (
	"encoding/json"
	"fmt"

	"github.com/aornugent/horseboard-sub002/internal/domain"
)

// KeepaliveFrame is the no-op heartbeat written to idle connections. SSE
// comment lines are ignored by clients but defeat idle-connection timeouts.
var KeepaliveFrame = []byte(": keepalive\n\n")

// EncodeFrame serializes an event into one SSE data frame.
func EncodeFrame(event domain.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal push event: %w", err)
	}
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}
