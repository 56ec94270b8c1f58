// Package encoding provides the deterministic byte form used for block
// hashing and payload signing.
package encoding

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Canonical returns the canonical JSON encoding of v.
//
// Object keys are sorted at every depth and no insignificant whitespace is
// emitted, so two logically equal values always encode to the same bytes
// regardless of field or insertion order. Structs are normalised through
// their JSON form first, which makes a struct and a map with the same
// fields indistinguishable. Numbers keep their literal text.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding: marshal: %w", err)
	}

	generic, err := decodeGeneric(raw)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("encoding: re-encode: %w", err)
	}

	// Encoder terminates every value with a newline
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Normalize decodes raw JSON into plain maps, slices and json.Number values.
func Normalize(raw []byte) (any, error) {
	return decodeGeneric(raw)
}

func decodeGeneric(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("encoding: decode: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("encoding: trailing data after JSON value")
	}
	return generic, nil
}
