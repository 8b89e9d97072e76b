// Package json wraps goccy/go-json for the engine's JSON surfaces: the
// inferred-schema dump (--schema-out) and JSON job files.
package json

import (
	gojson "github.com/goccy/go-json"
)

// MarshalIndent serializes v to indented JSON.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Unmarshal deserializes JSON into v.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}
