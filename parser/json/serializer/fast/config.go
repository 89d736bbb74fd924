// Package fast picks the fastest serializer available on the platform:
// sonic where its JIT is supported, go-json elsewhere.
package fast

import (
	"github.com/bytedance/sonic"
	"github.com/goccy/go-json"
	gojson "github.com/karagenc/sioengine/parser/json/serializer/go-json"
)

// Only the part that matches the platform is used.
type Config struct {
	Sonic  sonic.Config
	GoJSON gojson.Options
}

func DefaultConfig() Config {
	return Config{
		Sonic: sonic.Config{
			// Event names and arguments outlive the frame they were decoded from.
			CopyString:       true,
			CompactMarshaler: true,
			EscapeHTML:       true,
		},
		GoJSON: gojson.Options{
			Encode: []json.EncodeOptionFunc{json.UnorderedMap()},
		},
	}
}
