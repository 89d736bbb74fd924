package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"
)

const (
	payloadStringMarker byte = 0x00
	payloadBinaryMarker byte = 0x01
	payloadLenSeparator byte = 0xFF
)

var errInvalidPayload = fmt.Errorf("parser: invalid payload")

// NeedsBinaryPayload reports whether packets have to be sent with the binary
// payload encoding. This is only the case if the client supports binary
// and at least one of the packets carries binary data.
func NeedsBinaryPayload(supportsBinary bool, packets ...*Packet) bool {
	if !supportsBinary {
		return false
	}
	for _, p := range packets {
		if p.IsBinary {
			return true
		}
	}
	return false
}

// EncodePayloads encodes packets into a polling payload.
//
// String payload: <length>:<packet><length>:<packet>... where length is
// counted in UTF-16 code units, binary packets are base64 encoded.
//
// Binary payload: <0|1><length digits as bytes><0xFF><packet>...
func EncodePayloads(w io.Writer, binary bool, packets ...*Packet) error {
	bw := bufio.NewWriter(w)

	for _, p := range packets {
		var err error
		if binary {
			err = writeBinaryFrame(bw, p)
		} else {
			err = writeStringFrame(bw, p)
		}
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeStringFrame(w *bufio.Writer, p *Packet) error {
	built := p.Build(false)
	_, err := w.WriteString(strconv.Itoa(utf16Len(built)))
	if err != nil {
		return err
	}
	err = w.WriteByte(':')
	if err != nil {
		return err
	}
	_, err = w.Write(built)
	return err
}

func writeBinaryFrame(w *bufio.Writer, p *Packet) error {
	marker := payloadStringMarker
	if p.IsBinary {
		marker = payloadBinaryMarker
	}
	built := p.Build(true)

	err := w.WriteByte(marker)
	if err != nil {
		return err
	}
	for _, c := range strconv.Itoa(len(built)) {
		err = w.WriteByte(byte(c - '0'))
		if err != nil {
			return err
		}
	}
	err = w.WriteByte(payloadLenSeparator)
	if err != nil {
		return err
	}
	_, err = w.Write(built)
	return err
}

// DecodePayloads decodes a polling payload. binary must be set
// if the request body was sent as application/octet-stream.
func DecodePayloads(r io.Reader, binary bool) ([]*Packet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errInvalidPayload
	}
	if binary {
		return decodeBinaryPayload(data)
	}
	return decodeStringPayload(data)
}

func decodeStringPayload(data []byte) ([]*Packet, error) {
	packets := make([]*Packet, 0, 1) // Minimum 1 packet expected

	for len(data) > 0 {
		i := bytes.IndexByte(data, ':')
		if i <= 0 {
			return nil, errInvalidPayload
		}
		n, err := strconv.Atoi(string(data[:i]))
		if err != nil || n <= 0 {
			return nil, errInvalidPayload
		}
		data = data[i+1:]

		end, ok := utf16Offset(data, n)
		if !ok {
			return nil, errInvalidPayload
		}

		packet, err := Parse(data[:end], false)
		if err != nil {
			return nil, err
		}
		packets = append(packets, packet)
		data = data[end:]
	}
	return packets, nil
}

func decodeBinaryPayload(data []byte) ([]*Packet, error) {
	packets := make([]*Packet, 0, 1)

	for len(data) > 0 {
		marker := data[0]
		if marker != payloadStringMarker && marker != payloadBinaryMarker {
			return nil, errInvalidPayload
		}
		data = data[1:]

		n := 0
		i := 0
		for ; i < len(data) && data[i] != payloadLenSeparator; i++ {
			if data[i] > 9 {
				return nil, errInvalidPayload
			}
			n = n*10 + int(data[i])
		}
		if i == 0 || i == len(data) || n > len(data)-i-1 {
			return nil, errInvalidPayload
		}
		data = data[i+1:]

		packet, err := Parse(data[:n], marker == payloadBinaryMarker)
		if err != nil {
			return nil, err
		}
		packets = append(packets, packet)
		data = data[n:]
	}
	return packets, nil
}

func utf16Len(b []byte) (n int) {
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		b = b[size:]
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return
}

// Byte offset at which n UTF-16 code units have been consumed.
func utf16Offset(b []byte, n int) (offset int, ok bool) {
	units := 0
	for units < n {
		if offset >= len(b) {
			return 0, false
		}
		r, size := utf8.DecodeRune(b[offset:])
		offset += size
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
	}
	return offset, units == n
}
