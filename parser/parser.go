// Package parser defines the socket.io packet model and the contract
// of the codecs that turn packets into frames and back.
package parser

const ProtocolVersion = 4

type Creator func() Parser

type Parser interface {
	// Encode the packet. The first buffer is the text frame,
	// the rest are the binary attachments.
	//
	// If v contains binary data, EVENT and ACK packets are turned
	// into their binary variants, and header is updated accordingly.
	Encode(header *PacketHeader, v any) (buffers [][]byte, err error)

	// Decode a text frame. Attachments of a binary packet
	// are added to the returned packet by the caller.
	Decode(data []byte) (*Packet, error)

	// Args returns the argument list of a complete EVENT or ACK packet,
	// with the attachments in place of their placeholders.
	Args(p *Packet) ([]any, error)
}
