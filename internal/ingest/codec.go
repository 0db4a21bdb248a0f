// Package ingest accepts farm data snapshots over HTTP and NATS and
// hands them to the evaluation manager. A snapshot is one JSON object
// holding the full data context; the newest snapshot replaces the
// previous one.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// SnapshotSink receives decoded snapshots from ingest interfaces.
// Params: decoded data context.
// Returns: processing error.
type SnapshotSink interface {
	Apply(snapshot map[string]any) error
}

// decodeSnapshot decodes one snapshot object and rejects trailing
// JSON tokens.
// Params: raw JSON bytes with one object.
// Returns: decoded data context or decode error.
func decodeSnapshot(raw []byte) (map[string]any, error) {
	payload := bytes.TrimSpace(raw)
	if len(payload) == 0 {
		return nil, errors.New("empty payload")
	}
	if payload[0] != '{' {
		return nil, errors.New("snapshot must be a json object")
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	var snapshot map[string]any
	if err := decoder.Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if len(snapshot) == 0 {
		return nil, errors.New("snapshot must contain at least one top-level key")
	}
	if err := ensureJSONEOF(decoder); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// ensureJSONEOF rejects trailing tokens after a decoded JSON payload.
// Params: decoder positioned after primary decode.
// Returns: nil on EOF or error on trailing tokens.
func ensureJSONEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	err := decoder.Decode(&extra)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode trailing json: %w", err)
	}
	return errors.New("unexpected trailing json tokens")
}
