package commsutil

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrEmptyPayload is returned when a message carries no data.
var ErrEmptyPayload = errors.New("commsutil:codec - empty payload")

// EncodePayload serializes a value to JSON bytes.
func EncodePayload(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePayload deserializes JSON bytes into the given target. Blank payloads are rejected.
func DecodePayload(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrEmptyPayload
	}
	return json.Unmarshal(data, v)
}
