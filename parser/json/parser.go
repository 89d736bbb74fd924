// Package jsonparser is the default socket.io codec: packets are
// JSON encoded, and binary data travels in separate frames that are
// referenced from the JSON by placeholders.
package jsonparser

import (
	"github.com/karagenc/sioengine/parser"
	"github.com/karagenc/sioengine/parser/json/serializer"
)

// maxAttachments is the maximum number of the binary attachments to parse/send.
// If maxAttachments is 0, there will be no limit set for binary attachments.
func NewCreator(maxAttachments int, json serializer.JSONSerializer) parser.Creator {
	return func() parser.Parser {
		return &Parser{
			maxAttachments: maxAttachments,
			json:           json,
		}
	}
}

// Parser holds no per-connection state and is safe for concurrent use.
type Parser struct {
	maxAttachments int
	json           serializer.JSONSerializer
}

var _ parser.Parser = (*Parser)(nil)
