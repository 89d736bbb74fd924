package jsonparser

import (
	"fmt"
	"reflect"

	"github.com/fatih/structs"
	"github.com/karagenc/sioengine/parser"
)

var (
	errInvalidPlaceholder = fmt.Errorf("parser/json: invalid placeholder")
	errMissingAttachments = fmt.Errorf("parser/json: packet is missing attachments")
	errNotAnArgumentList  = fmt.Errorf("parser/json: packet doesn't carry an argument list")
)

const (
	placeholderKey    = "_placeholder"
	placeholderNumKey = "num"
)

func newPlaceholder(num int) map[string]any {
	return map[string]any{
		placeholderKey:    true,
		placeholderNumKey: num,
	}
}

// Args replaces the placeholders in the argument list of p with its attachments.
func (p *Parser) Args(packet *parser.Packet) ([]any, error) {
	if !packet.IsComplete() {
		return nil, errMissingAttachments
	}
	if packet.Data == nil {
		return nil, nil
	}
	args, ok := packet.Data.([]any)
	if !ok {
		return nil, errNotAnArgumentList
	}
	if len(packet.Attachments) == 0 {
		return args, nil
	}

	out := make([]any, len(args))
	for i, arg := range args {
		v, err := reconstruct(arg, packet.Attachments)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func reconstruct(v any, attachments [][]byte) (any, error) {
	switch v := v.(type) {
	case []any:
		for i, el := range v {
			r, err := reconstruct(el, attachments)
			if err != nil {
				return nil, err
			}
			v[i] = r
		}
		return v, nil
	case map[string]any:
		if isPlaceholder, _ := v[placeholderKey].(bool); isPlaceholder {
			num, ok := v[placeholderNumKey].(float64)
			if !ok || num < 0 || int(num) >= len(attachments) || num != float64(int(num)) {
				return nil, errInvalidPlaceholder
			}
			return parser.Binary(attachments[int(num)]), nil
		}
		for key, el := range v {
			r, err := reconstruct(el, attachments)
			if err != nil {
				return nil, err
			}
			v[key] = r
		}
		return v, nil
	}
	return v, nil
}

type deconstructor struct {
	buffers [][]byte
}

// deconstruct returns a copy of v with every binary value
// swapped for a placeholder. The binary values are collected in order.
func (d *deconstructor) deconstruct(v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case parser.Binary:
		return d.add(v)
	case []byte:
		return d.add(v)
	case []any:
		out := make([]any, len(v))
		for i, el := range v {
			out[i] = d.deconstruct(el)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, el := range v {
			out[key] = d.deconstruct(el)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return v
		}
		rv = rv.Elem()
	}

	if !hasBinary(rv) {
		return v
	}

	switch rv.Kind() {
	case reflect.Struct:
		s := structs.New(rv.Interface())
		s.TagName = "json"
		return d.deconstruct(s.Map())
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = d.deconstruct(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = d.deconstruct(iter.Value().Interface())
		}
		return out
	}
	return v
}

func (d *deconstructor) add(b []byte) map[string]any {
	placeholder := newPlaceholder(len(d.buffers))
	d.buffers = append(d.buffers, b)
	return placeholder
}

var (
	binaryType    = reflect.TypeOf(parser.Binary(nil))
	byteSliceType = reflect.TypeOf([]byte(nil))
)

func hasBinary(rv reflect.Value) bool {
	if !rv.IsValid() {
		return false
	}

	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr:
		if rv.IsNil() {
			return false
		}
		return hasBinary(rv.Elem())
	case reflect.Slice:
		if rv.Type() == binaryType || rv.Type() == byteSliceType {
			return true
		}
		fallthrough
	case reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if hasBinary(rv.Index(i)) {
				return true
			}
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if hasBinary(iter.Value()) {
				return true
			}
		}
	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if hasBinary(rv.Field(i)) {
				return true
			}
		}
	}
	return false
}
