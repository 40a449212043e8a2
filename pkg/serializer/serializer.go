// Package serializer converts arbitrary values to and from the byte
// representation used by every state.Backend implementation, so that
// an in-memory, Redis, or BoltDB store all round-trip a caller's value
// into the same shape.
package serializer

import (
	"encoding/json"
	"fmt"
)

// Format tags are prepended to the encoded byte slice so Decode can
// dispatch without out-of-band metadata.
const (
	tagJSON   byte = 'J'
	tagOpaque byte = 'P'
)

// Error wraps any failure to encode or decode a value.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("serializer: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Encode converts a value into its tagged byte representation.
//
// Values composed of strings, numbers, booleans, nil, slices, and maps
// (anything JSON can represent losslessly) are stored JSON-tagged.
// Raw []byte values are stored with the opaque tag as a straight byte
// copy. Any other value that json.Marshal rejects (e.g. a channel or
// a func) fails with an *Error; there is no other fallback encoding.
func Encode(value interface{}) ([]byte, error) {
	if raw, ok := value.([]byte); ok {
		out := make([]byte, len(raw)+1)
		out[0] = tagOpaque
		copy(out[1:], raw)
		return out, nil
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, &Error{Op: "encode", Err: err}
	}

	out := make([]byte, len(encoded)+1)
	out[0] = tagJSON
	copy(out[1:], encoded)
	return out, nil
}

// Decode reverses Encode. A stored blob with no recognized tag byte
// (e.g. written by a future format, or corrupted) is treated as
// opaque-legacy: the raw bytes are handed back unchanged.
func Decode(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, nil
	}

	tag, body := data[0], data[1:]
	switch tag {
	case tagJSON:
		var value interface{}
		if err := json.Unmarshal(body, &value); err != nil {
			return nil, &Error{Op: "decode", Err: err}
		}
		return value, nil
	case tagOpaque:
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	default:
		// Missing/unknown prefix: treat the whole payload as legacy
		// opaque bytes rather than failing the read.
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
}

// RoundTrip reports whether a value can be encoded (it runs Encode
// only, not Decode) — used by backends that want to fail fast on unsupported
// values before committing to storage (e.g. batch_set's "serialize
// first" requirement).
func RoundTrip(value interface{}) error {
	_, err := Encode(value)
	return err
}
