// Package parser implements the Engine.IO v3 framing: single packets
// (as sent over a websocket frame) and payloads (as sent over HTTP long-polling).
package parser

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
)

const ProtocolVersion = 3

type PacketType byte

const (
	PacketTypeOpen PacketType = iota
	PacketTypeClose
	PacketTypePing
	PacketTypePong
	PacketTypeMessage
	PacketTypeUpgrade
	PacketTypeNoop

	packetTypeMin = PacketTypeOpen
	packetTypeMax = PacketTypeNoop
)

func (p PacketType) String() string {
	switch p {
	case PacketTypeOpen:
		return "OPEN"
	case PacketTypeClose:
		return "CLOSE"
	case PacketTypePing:
		return "PING"
	case PacketTypePong:
		return "PONG"
	case PacketTypeMessage:
		return "MESSAGE"
	case PacketTypeUpgrade:
		return "UPGRADE"
	case PacketTypeNoop:
		return "NOOP"
	}
	return fmt.Sprintf("PacketType(%d)", byte(p))
}

func (p PacketType) ToChar() byte {
	return byte(p) + '0'
}

func (p *PacketType) FromChar(b byte) error {
	if b < packetTypeMin.ToChar() || b > packetTypeMax.ToChar() {
		return errInvalidPacketType
	}
	*p = PacketType(b - '0')
	return nil
}

// Binary frames carry the packet type as a raw byte instead of a digit.
func (p *PacketType) fromByte(b byte) error {
	if b > byte(packetTypeMax) {
		return errInvalidPacketType
	}
	*p = PacketType(b)
	return nil
}

const base64Prefix byte = 'b'

var (
	errInvalidPacketSize = fmt.Errorf("parser: invalid packet size")
	errInvalidPacketType = fmt.Errorf("parser: invalid packet type")
)

type Packet struct {
	Type     PacketType
	IsBinary bool
	Data     []byte
}

func NewPacket(packetType PacketType, isBinary bool, data []byte) (*Packet, error) {
	if packetType != PacketTypeMessage && isBinary {
		return nil, errInvalidPacketType
	}

	return &Packet{
		Type:     packetType,
		IsBinary: isBinary,
		Data:     data,
	}, nil
}

// Decode a single packet. isBinary must be set if the
// packet was received as a binary websocket frame.
func Decode(r io.Reader, isBinary bool) (*Packet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data, isBinary)
}

func Parse(data []byte, isBinary bool) (*Packet, error) {
	if len(data) < 1 {
		return nil, errInvalidPacketSize
	}

	packet := new(Packet)

	if isBinary {
		packet.IsBinary = true
		err := packet.Type.fromByte(data[0])
		if err != nil {
			return nil, err
		}
		if packet.Type != PacketTypeMessage {
			return nil, errInvalidPacketType
		}
		packet.Data = data[1:]
		return packet, nil
	}

	if data[0] == base64Prefix {
		if len(data) < 2 {
			return nil, errInvalidPacketSize
		}
		err := packet.Type.FromChar(data[1])
		if err != nil {
			return nil, err
		}
		if packet.Type != PacketTypeMessage {
			return nil, errInvalidPacketType
		}
		packet.IsBinary = true
		packet.Data, err = base64.StdEncoding.DecodeString(string(data[2:]))
		return packet, err
	}

	err := packet.Type.FromChar(data[0])
	if err != nil {
		return nil, err
	}
	packet.Data = data[1:]
	return packet, nil
}

// Encode writes the packet as a single frame.
// If supportsBinary is false, binary data is base64 encoded.
func (p *Packet) Encode(w io.Writer, supportsBinary bool) (err error) {
	_, err = w.Write(p.Build(supportsBinary))
	return
}

func (p *Packet) Build(supportsBinary bool) []byte {
	if p.IsBinary {
		if supportsBinary {
			b := make([]byte, 1+len(p.Data))
			b[0] = byte(p.Type)
			copy(b[1:], p.Data)
			return b
		}
		el := base64.StdEncoding.EncodedLen(len(p.Data))
		b := make([]byte, 2+el)
		b[0] = base64Prefix
		b[1] = p.Type.ToChar()
		base64.StdEncoding.Encode(b[2:], p.Data)
		return b
	}

	var buf bytes.Buffer
	buf.Grow(1 + len(p.Data))
	buf.WriteByte(p.Type.ToChar())
	buf.Write(p.Data)
	return buf.Bytes()
}
