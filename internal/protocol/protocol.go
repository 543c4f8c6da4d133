package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/luciancaetano/roomrelay"
)

// TimestampLayout is the wire format of every timestamp: UTC with milliseconds.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var (
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
	ErrInvalidJSON   = errors.New("frame is not valid JSON")
)

// Decode parses an inbound frame into its top-level fields.
//
// Frames longer than roomrelay.MaxFrameSize return ErrFrameTooLarge and frames
// that do not parse or are not valid UTF-8 return ErrInvalidJSON. A well-formed value that is not an
// object decodes to an empty map, so it carries no action.
func Decode(frame []byte) (map[string]any, error) {
	if len(frame) > roomrelay.MaxFrameSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrFrameTooLarge, len(frame), roomrelay.MaxFrameSize)
	}

	// json.Unmarshal would replace invalid bytes with U+FFFD
	if !utf8.Valid(frame) {
		return nil, fmt.Errorf("%w: invalid UTF-8", ErrInvalidJSON)
	}

	var v any
	if err := json.Unmarshal(frame, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	msg, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}
	return msg, nil
}

// Action returns the action field of msg, or "" when it is missing or not a string.
func Action(msg map[string]any) string {
	action, _ := msg["action"].(string)
	return action
}

// Str returns the string field name of msg, or "".
func Str(msg map[string]any, name string) string {
	s, _ := msg[name].(string)
	return s
}

// Encode serializes an outbound message.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return data, nil
}

// FormatTimestamp renders t in the wire timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
