//go:build !amd64 || (amd64 && !(linux || windows || darwin))

package fast

import (
	"github.com/karagenc/sioengine/parser/json/serializer"
	gojson "github.com/karagenc/sioengine/parser/json/serializer/go-json"
)

func New() serializer.JSONSerializer { return NewWithConfig(DefaultConfig()) }

func NewWithConfig(config Config) serializer.JSONSerializer {
	return gojson.New(config.GoJSON)
}
