package gojson

import (
	"github.com/goccy/go-json"
	"github.com/karagenc/sioengine/parser/json/serializer"
)

type Options struct {
	Encode []json.EncodeOptionFunc
	Decode []json.DecodeOptionFunc
}

func New(options Options) serializer.JSONSerializer {
	return serializer.New("go-json",
		func(v any) ([]byte, error) {
			return json.MarshalWithOption(v, options.Encode...)
		},
		func(data []byte, v any) error {
			return json.UnmarshalWithOption(data, v, options.Decode...)
		},
	)
}
