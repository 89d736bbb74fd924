//go:build sio_gojson

// Package json is the JSON codec of the HTTP glue: handshake responses and
// error bodies. Build with `-tags sio_gojson` to use goccy/go-json.
package json

import json "github.com/goccy/go-json"

var (
	Marshal    = json.Marshal
	Unmarshal  = json.Unmarshal
	NewDecoder = json.NewDecoder
	NewEncoder = json.NewEncoder
)
