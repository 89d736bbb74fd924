package jsonparser

import (
	"testing"

	"github.com/karagenc/sioengine/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	p := newTestParser(0)

	tests := []struct {
		header   parser.PacketHeader
		v        any
		expected string
	}{
		{header: parser.PacketHeader{Type: parser.PacketTypeConnect}, expected: "0"},
		{header: parser.PacketHeader{Type: parser.PacketTypeConnect, Namespace: "/chat"}, expected: "0/chat,"},
		{header: parser.PacketHeader{Type: parser.PacketTypeDisconnect, Namespace: "/chat"}, expected: "1/chat,"},
		{
			header:   parser.PacketHeader{Type: parser.PacketTypeEvent, Namespace: "/"},
			v:        []any{"message", "hi", 1},
			expected: `2["message","hi",1]`,
		},
		{
			header:   parser.PacketHeader{Type: parser.PacketTypeEvent, Namespace: "/chat", ID: ptr(5)},
			v:        []any{"message"},
			expected: `2/chat,5["message"]`,
		},
		{
			header:   parser.PacketHeader{Type: parser.PacketTypeAck, ID: ptr(1)},
			v:        []any{map[string]any{"ok": true}},
			expected: `31[{"ok":true}]`,
		},
		{
			header:   parser.PacketHeader{Type: parser.PacketTypeError, Namespace: "/chat"},
			v:        "Invalid namespace",
			expected: `4/chat,"Invalid namespace"`,
		},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			header := test.header
			buffers, err := p.Encode(&header, test.v)
			require.NoError(t, err)
			require.Len(t, buffers, 1)
			assert.Equal(t, test.expected, string(buffers[0]))
		})
	}
}

type upload struct {
	Name string        `json:"name"`
	File parser.Binary `json:"file"`
	skip []byte
}

func TestEncodeBinary(t *testing.T) {
	p := newTestParser(0)

	header := parser.PacketHeader{Type: parser.PacketTypeEvent, Namespace: "/chat", ID: ptr(2)}
	buffers, err := p.Encode(&header, []any{"upload", []byte{1}, &upload{Name: "a.txt", File: parser.Binary{2}, skip: []byte{3}}})
	require.NoError(t, err)

	assert.Equal(t, parser.PacketTypeBinaryEvent, header.Type)
	assert.Equal(t, 2, header.Attachments)
	require.Len(t, buffers, 3)
	assert.Equal(t, `52-/chat,2["upload",{"_placeholder":true,"num":0},{"file":{"_placeholder":true,"num":1},"name":"a.txt"}]`, string(buffers[0]))
	assert.Equal(t, []byte{1}, buffers[1])
	assert.Equal(t, []byte{2}, buffers[2])

	// Decoding what was encoded gives back the binary values.
	packet, err := p.Decode(buffers[0])
	require.NoError(t, err)
	for _, attachment := range buffers[1:] {
		packet.AddAttachment(attachment)
	}
	args, err := p.Args(packet)
	require.NoError(t, err)
	assert.Equal(t, []any{
		parser.Binary{1},
		map[string]any{"name": "a.txt", "file": parser.Binary{2}},
	}, args)
}

func TestEncodeBinaryAck(t *testing.T) {
	p := newTestParser(0)

	header := parser.PacketHeader{Type: parser.PacketTypeAck, ID: ptr(9)}
	buffers, err := p.Encode(&header, []any{map[string][]byte{"data": {7}}})
	require.NoError(t, err)
	assert.Equal(t, parser.PacketTypeBinaryAck, header.Type)
	require.Len(t, buffers, 2)
	assert.Equal(t, `61-9[{"data":{"_placeholder":true,"num":0}}]`, string(buffers[0]))
}

func TestMaxAttachmentsEncode(t *testing.T) {
	p := newTestParser(3)

	header := parser.PacketHeader{Type: parser.PacketTypeEvent}
	_, err := p.Encode(&header, []any{"a", []byte{1}, []byte{2}, []byte{3}, []byte{4}})
	assert.ErrorIs(t, err, errMaxAttachmentsExceeded)
}
