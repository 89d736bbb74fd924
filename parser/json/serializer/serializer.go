// Package serializer abstracts the JSON library that
// encodes the payloads of socket.io packets.
package serializer

type JSONSerializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error

	// Name of the JSON library in use.
	Name() string
}

type funcs struct {
	name      string
	marshal   func(v any) ([]byte, error)
	unmarshal func(data []byte, v any) error
}

// New returns a JSONSerializer backed by the given functions.
func New(name string, marshal func(v any) ([]byte, error), unmarshal func(data []byte, v any) error) JSONSerializer {
	return &funcs{name: name, marshal: marshal, unmarshal: unmarshal}
}

func (f *funcs) Marshal(v any) ([]byte, error) { return f.marshal(v) }

func (f *funcs) Unmarshal(data []byte, v any) error { return f.unmarshal(data, v) }

func (f *funcs) Name() string { return f.name }
