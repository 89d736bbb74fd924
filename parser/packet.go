package parser

import "fmt"

var errInvalidPacketType = fmt.Errorf("parser: invalid packet type")

type PacketType byte

const (
	PacketTypeConnect PacketType = iota
	PacketTypeDisconnect
	PacketTypeEvent
	PacketTypeAck
	PacketTypeError
	PacketTypeBinaryEvent
	PacketTypeBinaryAck

	packetTypeMin = PacketTypeConnect
	packetTypeMax = PacketTypeBinaryAck
)

func (p PacketType) String() string {
	switch p {
	case PacketTypeConnect:
		return "CONNECT"
	case PacketTypeDisconnect:
		return "DISCONNECT"
	case PacketTypeEvent:
		return "EVENT"
	case PacketTypeAck:
		return "ACK"
	case PacketTypeError:
		return "ERROR"
	case PacketTypeBinaryEvent:
		return "BINARY_EVENT"
	case PacketTypeBinaryAck:
		return "BINARY_ACK"
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

type PacketHeader struct {
	Type      PacketType
	Namespace string
	ID        *uint64
	// Number of binary frames that follow the packet.
	Attachments int
}

func (p *PacketHeader) IsBinary() bool {
	return p.Type == PacketTypeBinaryEvent || p.Type == PacketTypeBinaryAck
}

func (p *PacketHeader) IsEvent() bool {
	return p.Type == PacketTypeEvent || p.Type == PacketTypeBinaryEvent
}

func (p *PacketHeader) IsAck() bool {
	return p.Type == PacketTypeAck || p.Type == PacketTypeBinaryAck
}

// Packet is a decoded packet. Binary packets are incomplete until
// every attachment announced in the header has been added.
type Packet struct {
	Header PacketHeader

	// Query string that came along with the namespace of a CONNECT packet.
	Query string

	// Only set for events.
	EventName string

	// Decoded JSON payload. For events and acknowledgements this is the argument
	// list. Binary attachments are still represented by placeholders.
	Data any

	Attachments [][]byte
}

func (p *Packet) AddAttachment(data []byte) {
	p.Attachments = append(p.Attachments, data)
}

func (p *Packet) IsComplete() bool {
	return !p.Header.IsBinary() || len(p.Attachments) >= p.Header.Attachments
}

// Binary marks a value to be sent as a binary attachment.
// Received attachments are handed to the application as Binary.
type Binary []byte
