// Package jsonutil produces deterministic JSON for hashing and signing.
//
// Canonical form: object keys sorted bytewise, no insignificant whitespace,
// numbers exactly as encoding/json wrote them, and no HTML escaping, so
// "Rock & Roll" hashes as written.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// CanonicalMarshal encodes v in canonical form. json.RawMessage and []byte
// values are taken as JSON text, so documents read from disk can be
// canonicalized without a typed round trip.
func CanonicalMarshal(v any) ([]byte, error) {
	return CanonicalWithout(v)
}

// CanonicalWithout canonicalizes v with the named top-level members removed.
// With keys, v must encode as a JSON object.
func CanonicalWithout(v any, keys ...string) ([]byte, error) {
	doc, err := decode(v)
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		obj, ok := doc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("canonical: expected JSON object, got %T", doc)
		}
		for _, k := range keys {
			delete(obj, k)
		}
	}
	var buf bytes.Buffer
	if err := encode(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CanonicalIndent is CanonicalMarshal with two-space indentation and a
// trailing newline, for documents written to disk.
func CanonicalIndent(v any) ([]byte, error) {
	compact, err := CanonicalMarshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return nil, fmt.Errorf("canonical indent: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func decode(v any) (any, error) {
	var raw []byte
	switch val := v.(type) {
	case json.RawMessage:
		raw = val
	case []byte:
		raw = val
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("canonical marshal: %w", err)
		}
		raw = b
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("canonical unmarshal: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("canonical unmarshal: trailing data after JSON value")
	}
	return doc, nil
}

func encode(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		buf.WriteByte('{')
		for i, k := range slices.Sorted(maps.Keys(val)) {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := scalar(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return scalar(buf, val)
	}
	return nil
}

// scalar writes a string, json.Number, bool or nil.
func scalar(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
