package jsonparser

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/karagenc/sioengine/parser"
)

var (
	errInvalidPacketSize      = fmt.Errorf("parser/json: invalid packet size")
	errMalformedPacket        = fmt.Errorf("parser/json: malformed packet")
	errInvalidEventName       = fmt.Errorf("parser/json: event name must be a string")
	errMaxAttachmentsExceeded = fmt.Errorf("parser/json: maximum number of attachments exceeded")
)

// Decode parses a text frame of the form:
//
//	<type>[<attachments>-][<namespace>[?<query>],][<id>][<json>]
func (p *Parser) Decode(data []byte) (*parser.Packet, error) {
	if len(data) < 1 {
		return nil, errInvalidPacketSize
	}

	packet := new(parser.Packet)
	header := &packet.Header

	err := header.Type.FromChar(data[0])
	if err != nil {
		return nil, err
	}
	data = data[1:]

	// If packet type is binary, look up attachments
	if header.IsBinary() {
		i := bytes.IndexByte(data, '-')
		if i <= 0 {
			return nil, errMalformedPacket
		}
		attachments, err := strconv.ParseUint(string(data[:i]), 10, 31)
		if err != nil {
			return nil, errMalformedPacket
		}
		header.Attachments = int(attachments)
		if p.maxAttachments > 0 && header.Attachments > p.maxAttachments {
			return nil, errMaxAttachmentsExceeded
		}
		data = data[i+1:]
	}

	// Look up namespace
	header.Namespace = "/"
	if len(data) >= 1 && data[0] == '/' {
		i := bytes.IndexByte(data, ',')
		if i == -1 {
			i = len(data)
		}
		nsp := string(data[:i])
		if q := bytes.IndexByte(data[:i], '?'); q != -1 {
			nsp = string(data[:q])
			packet.Query = string(data[q+1 : i])
		}
		header.Namespace = nsp

		if i < len(data) {
			data = data[i+1:]
		} else {
			data = nil
		}
	}

	// Look up ID
	i := 0
	for ; i < len(data) && data[i] >= '0' && data[i] <= '9'; i++ {
	}
	if i > 0 {
		num, err := strconv.ParseUint(string(data[:i]), 10, 64)
		if err != nil {
			return nil, errMalformedPacket
		}
		header.ID = &num
		data = data[i:]
	}

	if len(data) > 0 {
		err = p.json.Unmarshal(data, &packet.Data)
		if err != nil {
			return nil, err
		}
	}

	if header.IsEvent() {
		args, ok := packet.Data.([]any)
		if !ok || len(args) == 0 {
			return nil, errMalformedPacket
		}
		eventName, ok := args[0].(string)
		if !ok {
			return nil, errInvalidEventName
		}
		packet.EventName = eventName
		packet.Data = args[1:]
	} else if header.IsAck() {
		if packet.Data == nil {
			packet.Data = []any{}
		}
		if _, ok := packet.Data.([]any); !ok {
			return nil, errMalformedPacket
		}
	}
	return packet, nil
}
