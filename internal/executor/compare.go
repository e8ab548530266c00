package executor

import (
	"bytes"
	"encoding/json"
)

// Canonicalize re-encodes a JSON document with object keys sorted and numbers
// normalised through float64, so 1 and 1.0 encode identically. Integers beyond
// 2^53 lose precision.
func Canonicalize(raw []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// Equal reports whether two JSON documents hold the same value. Key order is
// ignored; array order is not.
func Equal(a, b []byte) (bool, error) {
	ca, err := Canonicalize(a)
	if err != nil {
		return false, err
	}
	cb, err := Canonicalize(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ca, cb), nil
}
