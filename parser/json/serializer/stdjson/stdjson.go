// Package stdjson serializes with encoding/json. It's the slowest
// option, and the one whose output every other option is tested against.
package stdjson

import (
	"encoding/json"

	"github.com/karagenc/sioengine/parser/json/serializer"
)

func New() serializer.JSONSerializer {
	return serializer.New("encoding/json", json.Marshal, json.Unmarshal)
}
