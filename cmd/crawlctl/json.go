package main

import (
	"io"

	json "github.com/segmentio/encoding/json"
)

// encodeJSON writes v to w as indented JSON using segmentio/encoding/json,
// a drop-in encoding/json replacement the teacher's go.mod already listed
// but never imported; `search --format json` and `health --format json`
// are its two call sites.
func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
