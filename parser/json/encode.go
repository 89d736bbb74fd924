package jsonparser

import (
	"bytes"
	"reflect"
	"strconv"

	"github.com/karagenc/sioengine/parser"
)

func (p *Parser) Encode(header *parser.PacketHeader, v any) ([][]byte, error) {
	if (header.Type == parser.PacketTypeEvent || header.Type == parser.PacketTypeAck) && hasBinary(reflect.ValueOf(v)) {
		if header.Type == parser.PacketTypeEvent {
			header.Type = parser.PacketTypeBinaryEvent
		} else {
			header.Type = parser.PacketTypeBinaryAck
		}
	}

	if !header.IsBinary() {
		buf, err := p.encodeString(header, v)
		if err != nil {
			return nil, err
		}
		return [][]byte{buf}, nil
	}
	return p.encodeBinary(header, v)
}

func (p *Parser) encodeString(header *parser.PacketHeader, v any) ([]byte, error) {
	var (
		buf  = bytes.Buffer{}
		grow int
	)

	grow += 1  // Packet type
	grow += 2  // Attachments
	grow += 20 // Namespace (Approximate length)
	grow += 20 // Ack ID (Max length)
	buf.Grow(grow)

	buf.WriteByte(header.Type.ToChar())

	if header.IsBinary() {
		buf.WriteString(strconv.Itoa(header.Attachments))
		buf.WriteByte('-')
	}

	if header.Namespace != "" && header.Namespace != "/" {
		buf.WriteString(header.Namespace)
		buf.WriteByte(',')
	}

	if header.ID != nil {
		buf.WriteString(strconv.FormatUint(*header.ID, 10))
	}

	if v != nil {
		data, err := p.json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

func (p *Parser) encodeBinary(header *parser.PacketHeader, v any) ([][]byte, error) {
	d := deconstructor{}
	v = d.deconstruct(v)

	if p.maxAttachments > 0 && len(d.buffers) > p.maxAttachments {
		return nil, errMaxAttachmentsExceeded
	}
	header.Attachments = len(d.buffers)

	s, err := p.encodeString(header, v)
	if err != nil {
		return nil, err
	}
	return append([][]byte{s}, d.buffers...), nil
}
