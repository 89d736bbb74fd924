package sio

import (
	"net/http"

	eioparser "github.com/karagenc/sioengine/engine.io/parser"
	"github.com/karagenc/sioengine/engine.io/transport"
	"github.com/karagenc/sioengine/engine.io/transport/polling"
	_websocket "github.com/karagenc/sioengine/engine.io/transport/websocket"
	"nhooyr.io/websocket"
)

// Transport is a delivery mechanism for the packets of a session.
type Transport interface {
	// Name of the transport as it appears in the `transport` query parameter.
	Name() string

	// Transports that a connection of this transport can be upgraded to.
	Upgrades() []string

	// CreateConnection creates a connection that feeds its packets to session.
	// r is the request that opens the connection.
	CreateConnection(session *Session, r *http.Request) (TransportConnection, error)
}

// TransportConnection is one physical connection of a session.
type TransportConnection interface {
	Transport() Transport

	// The request that opened the connection.
	Request() *http.Request

	Send(packets ...*eioparser.Packet) error

	// Abort tears the connection down. Once it's gone,
	// the session is shut down (see Session.OnShutdown).
	Abort()

	// Disconnect disconnects the peer from nsp. If closeConnection
	// is true, the connection is aborted as well.
	Disconnect(nsp string, closeConnection bool)

	// Discard closes the connection without shutting the session down,
	// and returns the packets that were waiting to be delivered.
	// It is used to get rid of the old connection after an upgrade.
	Discard() []*eioparser.Packet
}

// Connections created by the built-in transports are served over HTTP.
type httpConnection interface {
	TransportConnection
	handshake(w http.ResponseWriter, r *http.Request) error
	postHandshake(w http.ResponseWriter, r *http.Request)
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

type serverConnection struct {
	transport Transport
	st        transport.ServerTransport
	session   *Session
	request   *http.Request
}

var _ httpConnection = (*serverConnection)(nil)

func newServerConnection(t Transport, session *Session, r *http.Request, create func(c *transport.Callbacks) (transport.ServerTransport, error)) (*serverConnection, error) {
	callbacks := transport.NewCallbacks()
	st, err := create(callbacks)
	if err != nil {
		return nil, err
	}

	c := &serverConnection{
		transport: t,
		st:        st,
		session:   session,
		request:   r,
	}
	callbacks.Set(c.onPacket, c.onClose)
	return c, nil
}

func (c *serverConnection) onPacket(packets ...*eioparser.Packet) {
	for _, p := range packets {
		err := c.session.OnPacket(p, c)
		if err != nil {
			c.session.reportError(err)
		}
	}
}

func (c *serverConnection) onClose(transportName string, err error) {
	// The transport might be closing from within a listener,
	// which runs with the session locked.
	go c.session.onConnectionClose(c, err)
}

func (c *serverConnection) Transport() Transport { return c.transport }

func (c *serverConnection) Request() *http.Request { return c.request }

func (c *serverConnection) Send(packets ...*eioparser.Packet) error {
	return c.st.Send(packets...)
}

func (c *serverConnection) Abort() { c.st.Close() }

func (c *serverConnection) Disconnect(nsp string, closeConnection bool) {
	c.session.disconnectSocket(nsp, ReasonClosedLocally)
	if closeConnection {
		c.session.SetDisconnectReason(ReasonClosedLocally)
		c.Abort()
	}
}

func (c *serverConnection) Discard() []*eioparser.Packet {
	// Take the packets first. The NOOP that Discard queues
	// has to reach the pending poll.
	packets := c.st.QueuedPackets()
	c.st.Discard()
	return packets
}

func (c *serverConnection) handshake(w http.ResponseWriter, r *http.Request) error {
	return c.st.Handshake(w, r)
}

func (c *serverConnection) postHandshake(w http.ResponseWriter, r *http.Request) {
	c.st.PostHandshake(w, r)
}

func (c *serverConnection) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.st.ServeHTTP(w, r)
}

// PollingTransport is HTTP long-polling.
type PollingTransport struct {
	config polling.ServerConfig
}

func NewPollingTransport(config polling.ServerConfig) *PollingTransport {
	return &PollingTransport{config: config}
}

func (t *PollingTransport) Name() string { return "polling" }

func (t *PollingTransport) Upgrades() []string { return []string{"websocket"} }

func (t *PollingTransport) CreateConnection(session *Session, r *http.Request) (TransportConnection, error) {
	return newServerConnection(t, session, r, func(c *transport.Callbacks) (transport.ServerTransport, error) {
		return polling.NewServerTransport(c, t.config)
	})
}

// WebSocketTransport keeps a WebSocket connection open per session.
type WebSocketTransport struct {
	maxBufferSize int64
	acceptOptions *websocket.AcceptOptions
}

func NewWebSocketTransport(maxBufferSize int64, acceptOptions *websocket.AcceptOptions) *WebSocketTransport {
	return &WebSocketTransport{
		maxBufferSize: maxBufferSize,
		acceptOptions: acceptOptions,
	}
}

func (t *WebSocketTransport) Name() string { return "websocket" }

func (t *WebSocketTransport) Upgrades() []string { return nil }

func (t *WebSocketTransport) CreateConnection(session *Session, r *http.Request) (TransportConnection, error) {
	return newServerConnection(t, session, r, func(c *transport.Callbacks) (transport.ServerTransport, error) {
		return _websocket.NewServerTransport(c, t.maxBufferSize, t.acceptOptions), nil
	})
}
