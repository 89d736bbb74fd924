// Package transport defines the contract every Engine.IO server transport satisfies.
package transport

import (
	"fmt"
	"net/http"

	"github.com/karagenc/sioengine/engine.io/parser"
)

var ErrClosed = fmt.Errorf("transport: closed")

type ServerTransport interface {
	// Name of the transport in lowercase.
	Name() string

	// Handshake accepts the request that opened the transport.
	// onPacket callback must not be called in this method.
	Handshake(w http.ResponseWriter, r *http.Request) error

	// PostHandshake is called after the transport has been bound to a session.
	// Polling serves the request that opened it. WebSocket runs its read loop here
	// and only returns when the connection is gone.
	PostHandshake(w http.ResponseWriter, r *http.Request)

	// If the transport supports handling HTTP requests (after the handshake is completely done) make use of this method.
	// Otherwise, just reply with 400 (Bad request).
	ServeHTTP(w http.ResponseWriter, r *http.Request)

	// Return the packets that are waiting to be delivered (polling only).
	QueuedPackets() []*parser.Packet

	Send(packets ...*parser.Packet) error

	// Discard closes the transport without calling the onClose callback.
	// This is used after an upgrade to get rid of the old transport.
	//
	// You must make sure that this method doesn't block or recursively call itself.
	Discard()

	// Close closes the transport and calls the onClose callback.
	//
	// You must make sure that this method doesn't block or recursively call itself.
	Close()
}
