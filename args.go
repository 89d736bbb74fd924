package sio

import (
	"fmt"

	"github.com/karagenc/sioengine/parser"
	"github.com/mitchellh/mapstructure"
)

// Binary values are sent as binary attachments.
// []byte is treated the same way.
type Binary = parser.Binary

// Args is the argument list of an event or an acknowledgement,
// as decoded from JSON. Binary attachments appear as Binary.
type Args []any

// Bind decodes the i-th argument into v, which must be a pointer.
// Struct fields are matched by their json tags.
func (a Args) Bind(i int, v any) error {
	if i < 0 || i >= len(a) {
		return fmt.Errorf("sio: argument %d doesn't exist (%d arguments)", i, len(a))
	}

	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           v,
	})
	if err != nil {
		return err
	}
	return d.Decode(a[i])
}

// String returns the i-th argument if it is a string.
func (a Args) String(i int) (string, bool) {
	if i < 0 || i >= len(a) {
		return "", false
	}
	s, ok := a[i].(string)
	return s, ok
}
