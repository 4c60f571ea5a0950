package versions

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// binaryKey marks an encoded []byte value inside a payload document.
const binaryKey = "$binary"

// ErrMalformedPayload is returned when a stored payload is not a JSON object.
var ErrMalformedPayload = errors.New("payload is not a mapping")

// EncodePayload serializes a row snapshot to JSON. []byte values, such as
// binary UUIDs, are stored as {"$binary": "<base64>"} so they survive the
// round trip.
func EncodePayload(p map[string]any) ([]byte, error) {
	if p == nil {
		p = map[string]any{}
	}
	b, err := json.Marshal(wrapBinary(p))
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return b, nil
}

// DecodePayload parses a payload produced by EncodePayload. Integral numbers
// decode to int64, other numbers to float64.
func DecodePayload(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	m, ok := unwrapBinary(v).(map[string]any)
	if !ok {
		return nil, ErrMalformedPayload
	}
	return m, nil
}

// ClonePayload deep-copies a payload through its serialized form.
func ClonePayload(p map[string]any) (map[string]any, error) {
	b, err := EncodePayload(p)
	if err != nil {
		return nil, err
	}
	return DecodePayload(b)
}

func wrapBinary(v any) any {
	switch t := v.(type) {
	case []byte:
		return map[string]any{binaryKey: base64.StdEncoding.EncodeToString(t)}
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = wrapBinary(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = wrapBinary(e)
		}
		return out
	default:
		return v
	}
}

func unwrapBinary(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		if enc, ok := t[binaryKey].(string); ok && len(t) == 1 {
			if b, err := base64.StdEncoding.DecodeString(enc); err == nil {
				return b
			}
		}
		for k, e := range t {
			t[k] = unwrapBinary(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = unwrapBinary(e)
		}
		return t
	default:
		return v
	}
}
