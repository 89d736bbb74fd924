//go:build amd64 && (linux || windows || darwin)

// Package sonic serializes with bytedance/sonic. It's only
// available on the platforms that sonic's JIT supports.
package sonic

import (
	"github.com/bytedance/sonic"
	"github.com/karagenc/sioengine/parser/json/serializer"
)

type Config = sonic.Config

func New(config Config) serializer.JSONSerializer {
	api := config.Froze()
	return serializer.New("sonic", api.Marshal, api.Unmarshal)
}
