package domain

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"
)

// QueuedOperation is one mutation captured while disconnected.
// Params: generated id, target entity table, opaque payload, capture time.
// Returns: FIFO offline queue entry replayed on reconnect.
type QueuedOperation struct {
	ID        string          `json:"id"`
	Entity    string          `json:"entity"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewOperationID builds an offline operation id in op-<timestamp>-<random> form.
// Params: capture time.
// Returns: unique queue entry id.
func NewOperationID(at time.Time) string {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		// Fall back to the nanosecond remainder; uniqueness within one
		// process tick is still guaranteed by the timestamp prefix.
		return "op-" + strconv.FormatInt(at.UnixMilli(), 10) + "-" + strconv.FormatInt(at.UnixNano()%1_000_000, 10)
	}
	return "op-" + strconv.FormatInt(at.UnixMilli(), 10) + "-" + hex.EncodeToString(suffix)
}
