package sio

import (
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/karagenc/sioengine/internal/sync"

	eioparser "github.com/karagenc/sioengine/engine.io/parser"
	"github.com/karagenc/sioengine/engine.io/transport"
	"github.com/karagenc/sioengine/parser"
)

// Session is the state of one peer across the connections it makes.
// Only one connection is active at a time; an upgrade hands the
// session over to a new connection.
//
// Packet processing, connection binding, upgrade and shutdown are
// serialized by one lock per session. Listeners run while that lock
// is held, so anything they can reach only takes the narrower locks below.
type Session struct {
	id       string
	registry *SessionRegistry
	parser   parser.Parser
	request  *http.Request

	timeout   time.Duration
	scheduler Scheduler

	// Serializes OnConnect, OnPacket, upgrades and OnShutdown.
	mu sync.Mutex

	// Guards the fields below. Never held while calling out.
	stateMu       sync.RWMutex
	state         ConnectionState
	reason        Reason
	message       string
	conn          TransportConnection
	timedOut      bool
	timeoutGen    uint64
	cancelTimeout func()

	// Set while the root connect listeners run. Packets sent in the
	// meantime go out after the connect acknowledgement, and a closure
	// requested in the meantime is applied once the listeners return.
	holding          bool
	held             []*eioparser.Packet
	requested        Reason
	requestedMessage string

	// The binary packet whose attachments are being received. Guarded by mu.
	inProgress *parser.Packet

	sockets  *sessionSocketStore
	acks     *ackStore
	packetID atomic.Uint64

	attrs sync.Map

	debug Debugger
}

func newSession(id string, registry *SessionRegistry, r *http.Request) *Session {
	s := &Session{
		id:       id,
		registry: registry,
		parser:   registry.parserCreator(),
		request:  r,

		timeout:   registry.sessionTimeout(),
		scheduler: registry.scheduler,

		state:  StateConnecting,
		reason: ReasonUnknown,

		sockets: newSessionSocketStore(),
		acks:    newAckStore(),
	}
	s.debug = registry.debug.WithDynamicContext("[sio] Session with ID: "+id, func() string {
		return s.State().String()
	})
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() ConnectionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Reason and message of the disconnection.
// Only meaningful once the session is closing.
func (s *Session) DisconnectReason() (Reason, string) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.reason, s.message
}

// Connection returns the active connection, or nil if none is bound yet.
func (s *Session) Connection() TransportConnection {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.conn
}

// Request returns the request of the active connection, or the
// request that created the session if no connection is bound.
func (s *Session) Request() *http.Request {
	conn := s.Connection()
	if conn != nil && conn.Request() != nil {
		return conn.Request()
	}
	return s.request
}

// Socket returns the socket bound to the namespace.
func (s *Session) Socket(nsp string) (socket *Socket, ok bool) {
	return s.sockets.get(nsp)
}

func (s *Session) Set(key string, value any) { s.attrs.Store(key, value) }

func (s *Session) Get(key string) (value any, ok bool) { return s.attrs.Load(key) }

func (s *Session) Delete(key string) { s.attrs.Delete(key) }

// NewPacketID returns a packet ID that was never returned before by this session.
func (s *Session) NewPacketID() uint64 {
	return s.packetID.Add(1) - 1
}

// OnConnect binds the first connection of the session: it sends the
// handshake, creates the socket of the root namespace and runs its
// connect listeners. If a listener rejects the connection, the peer
// gets an error packet, the connection is aborted and the error is returned.
// If a listener closes the session instead, ErrSessionClosed is returned.
func (s *Session) OnConnect(conn TransportConnection) error {
	if conn == nil {
		return ErrNoConnection
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateMu.Lock()
	if s.conn != nil {
		s.stateMu.Unlock()
		return ErrConnectionAlreadyBound
	}
	if s.state != StateConnecting {
		s.stateMu.Unlock()
		return ErrSessionClosed
	}
	s.conn = conn
	s.stateMu.Unlock()

	s.debug.Log("OnConnect", conn.Transport().Name())

	err := s.sendHandshake(conn)
	if err != nil {
		s.SetDisconnectReason(ReasonError)
		conn.Abort()
		return err
	}

	nsp, ok := s.registry.GetNamespace("/")
	if !ok {
		return wrapInternalError(fmt.Errorf("root namespace is not declared"))
	}
	socket := nsp.createSocket(s, conn.Request())
	s.sockets.set(socket)

	s.stateMu.Lock()
	s.holding = true
	s.stateMu.Unlock()

	err = nsp.onConnect(socket)

	s.stateMu.Lock()
	held := s.held
	requested, requestedMessage := s.requested, s.requestedMessage
	s.holding, s.held = false, nil
	s.requested, s.requestedMessage = "", ""
	if err == nil {
		s.state = StateConnected
		if requested != "" {
			s.state = StateClosing
			s.reason, s.message = requested, requestedMessage
		}
	}
	s.stateMu.Unlock()

	if err != nil {
		s.debug.Log("Root namespace rejected the connection", err)
		s.sendConnectError("/", err)
		s.setDisconnectReason(ReasonConnectFailed, err.Error())
		conn.Abort()
		return err
	}
	if requested != "" {
		s.debug.Log("Closed by a connect listener", requested)
		conn.Abort()
		return ErrSessionClosed
	}

	s.sendPacket(&parser.PacketHeader{Type: parser.PacketTypeConnect, Namespace: "/"}, nil)
	if len(held) > 0 {
		s.send(held...)
	}
	s.resetTimeout()
	return nil
}

func (s *Session) sendHandshake(conn TransportConnection) error {
	pingInterval, pingTimeout := s.registry.advertisedPingValues()
	packet, err := eioparser.NewHandshakePacket(&eioparser.HandshakeResponse{
		SID:          s.id,
		Upgrades:     conn.Transport().Upgrades(),
		PingInterval: pingInterval.Milliseconds(),
		PingTimeout:  pingTimeout.Milliseconds(),
	})
	if err != nil {
		return wrapInternalError(err)
	}
	return conn.Send(packet)
}

// OnPacket processes a packet that arrived on conn. Packets that
// violate the protocol are dropped and reported with a *ProtocolError;
// the session stays alive.
func (s *Session) OnPacket(packet *eioparser.Packet, conn TransportConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateClosed {
		s.debug.Log("OnPacket", "packet received after the session was closed", packet.Type)
		return nil
	}

	switch packet.Type {
	case eioparser.PacketTypeOpen, eioparser.PacketTypePong:
		return nil

	case eioparser.PacketTypeMessage:
		s.resetTimeout()
		return s.onMessage(packet)

	case eioparser.PacketTypePing:
		s.resetTimeout()
		pong, err := eioparser.NewPacket(eioparser.PacketTypePong, false, packet.Data)
		if err != nil {
			return wrapInternalError(err)
		}
		err = conn.Send(pong)
		if err != nil {
			s.onSendError(conn, err)
			return nil
		}
		if active := s.Connection(); active != nil && active != conn {
			s.forcePollingCycle(active)
		}
		return nil

	case eioparser.PacketTypeClose:
		s.debug.Log("OnPacket", "CLOSE received")
		s.close(ReasonClosedRemotely)
		return nil

	case eioparser.PacketTypeUpgrade:
		s.upgrade(conn)
		return nil
	}
	return newProtocolError(s.id, fmt.Errorf("%w: %s", errUnexpectedPacket, packet.Type))
}

// forcePollingCycle answers the pending poll of the active connection
// with a NOOP. Polling clients probing an upgrade wait for their poll to
// return before they send the UPGRADE packet.
func (s *Session) forcePollingCycle(active TransportConnection) {
	noop, err := eioparser.NewPacket(eioparser.PacketTypeNoop, false, nil)
	if err != nil {
		return
	}
	err = active.Send(noop)
	if err != nil {
		s.onSendError(active, err)
	}
}

func (s *Session) upgrade(conn TransportConnection) {
	s.stateMu.Lock()
	old := s.conn
	if old == conn || old == nil || s.state == StateClosing || s.state == StateClosed {
		s.stateMu.Unlock()
		return
	}
	s.conn = conn
	s.stateMu.Unlock()

	s.debug.Log("Upgraded", old.Transport().Name(), conn.Transport().Name())

	var pending []*eioparser.Packet
	for _, p := range old.Discard() {
		if p.Type != eioparser.PacketTypeNoop {
			pending = append(pending, p)
		}
	}
	if len(pending) > 0 {
		err := conn.Send(pending...)
		if err != nil {
			s.onSendError(conn, err)
		}
	}
}

func (s *Session) onMessage(packet *eioparser.Packet) error {
	if packet.IsBinary {
		if s.inProgress == nil {
			return newProtocolError(s.id, errNoBinaryPacketInProgress)
		}
		s.inProgress.AddAttachment(packet.Data)
		if !s.inProgress.IsComplete() {
			return nil
		}
		p := s.inProgress
		s.inProgress = nil
		return s.dispatch(p)
	}

	p, err := s.parser.Decode(packet.Data)
	if err != nil {
		return newProtocolError(s.id, err)
	}
	if !p.IsComplete() {
		if s.inProgress != nil {
			s.debug.Log("Dropping incomplete binary packet", s.inProgress.Header.Type)
		}
		s.inProgress = p
		return nil
	}
	return s.dispatch(p)
}

func (s *Session) dispatch(p *parser.Packet) error {
	if s.State() != StateConnected {
		s.debug.Log("Ignoring packet while not connected", p.Header.Type)
		return nil
	}

	switch p.Header.Type {
	case parser.PacketTypeConnect:
		s.onConnectPacket(p)
	case parser.PacketTypeDisconnect:
		s.debug.Log("DISCONNECT received", p.Header.Namespace)
		s.close(ReasonClosedRemotely)
	case parser.PacketTypeEvent, parser.PacketTypeBinaryEvent:
		return s.onEventPacket(p)
	case parser.PacketTypeAck, parser.PacketTypeBinaryAck:
		return s.onAckPacket(p)
	default:
		return newProtocolError(s.id, fmt.Errorf("%w: %s", errUnexpectedPacket, p.Header.Type))
	}
	return nil
}

func (s *Session) onConnectPacket(p *parser.Packet) {
	name := p.Header.Namespace
	nsp, ok := s.registry.GetNamespace(name)
	if !ok {
		s.debug.Log("CONNECT to an undeclared namespace", name)
		s.sendError(name, "Invalid namespace")
		return
	}

	if _, ok := s.sockets.get(name); ok {
		s.sendPacket(&parser.PacketHeader{Type: parser.PacketTypeConnect, Namespace: name}, nil)
		return
	}

	socket := nsp.createSocket(s, s.Request())
	socket.setQuery(p.Query)
	s.sockets.set(socket)
	s.sendPacket(&parser.PacketHeader{Type: parser.PacketTypeConnect, Namespace: name}, nil)

	err := nsp.onConnect(socket)
	if err != nil {
		s.debug.Log("Namespace rejected the connection", name, err)
		s.sendConnectError(name, err)
		if _, ok := s.sockets.remove(name); ok {
			socket.onDisconnect(ReasonConnectFailed, err.Error())
		}
	}
}

func (s *Session) onEventPacket(p *parser.Packet) error {
	name := p.Header.Namespace
	if _, ok := s.registry.GetNamespace(name); !ok {
		s.sendError(name, "Invalid namespace")
		return nil
	}
	socket, ok := s.sockets.get(name)
	if !ok {
		s.sendError(name, "Not connected to namespace")
		return nil
	}

	args, err := s.parser.Args(p)
	if err != nil {
		return newProtocolError(s.id, err)
	}

	ackRequested := p.Header.ID != nil
	result, err := socket.onEvent(p.EventName, args, ackRequested)
	if err != nil {
		s.reportError(fmt.Errorf("sio: listener of event '%s' failed: %w", p.EventName, err))
		return nil
	}

	if ackRequested && len(result) > 0 {
		id := *p.Header.ID
		s.sendPacket(&parser.PacketHeader{Type: parser.PacketTypeAck, Namespace: name, ID: &id}, result)
	}
	return nil
}

func (s *Session) onAckPacket(p *parser.Packet) error {
	if p.Header.ID == nil {
		return newProtocolError(s.id, fmt.Errorf("acknowledgement without an ID"))
	}

	ack, ok := s.acks.remove(*p.Header.ID)
	if !ok {
		s.debug.Log("Acknowledgement with unknown ID", *p.Header.ID)
		return nil
	}

	args, err := s.parser.Args(p)
	if err != nil {
		return newProtocolError(s.id, err)
	}

	err = callAck(ack, args)
	if err != nil {
		s.reportError(fmt.Errorf("sio: acknowledgement callback failed: %w", err))
	}
	return nil
}

func callAck(ack AckCallback, args Args) (err error) {
	defer recoverError(&err)
	return ack(args)
}

// SetDisconnectReason requests the closure of the session. The session
// is closed once the connection is released (see OnShutdown).
// Only the first reason is kept.
func (s *Session) SetDisconnectReason(reason Reason) {
	s.setDisconnectReason(reason, "")
}

func (s *Session) setDisconnectReason(reason Reason, message string) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	switch s.state {
	case StateConnected:
	case StateConnecting:
		if s.holding {
			if s.requested == "" {
				s.requested, s.requestedMessage = reason, message
			}
			return
		}
		// A session that never got connected can only fail to connect.
		if reason != ReasonConnectFailed {
			message = causeMessage(reason, message)
			reason = ReasonConnectFailed
		}
	default:
		return
	}
	s.state = StateClosing
	s.reason = reason
	s.message = message
}

func causeMessage(reason Reason, message string) string {
	if message == "" {
		return string(reason)
	}
	return string(reason) + ": " + message
}

// close records reason and aborts the active connection.
// The session is shut down once the transport reports the connection as closed.
//
// close doesn't take mu: it's called from packet handling, which already
// holds it, and from Registry.Close. Every field it touches is guarded by
// stateMu, and the shutdown itself runs in OnShutdown under mu.
func (s *Session) close(reason Reason) {
	s.setDisconnectReason(reason, "")
	conn := s.Connection()
	if conn == nil {
		go s.OnShutdown()
		return
	}
	conn.Abort()
}

// OnShutdown is called once the active connection is gone. It notifies
// every socket and removes the session from the registry. Calling it
// more than once is harmless.
func (s *Session) OnShutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateMu.Lock()
	if s.state == StateClosed {
		s.stateMu.Unlock()
		return
	}
	reason, message := ReasonError, ""
	switch s.state {
	case StateClosing:
		reason, message = s.reason, s.message
	case StateConnecting:
		reason, message = ReasonConnectFailed, string(ReasonError)
	}
	s.state = StateClosed
	s.reason, s.message = reason, message
	s.timedOut = true
	cancel := s.cancelTimeout
	s.cancelTimeout = nil
	s.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.debug.Log("OnShutdown", reason)

	s.inProgress = nil
	for _, socket := range s.sockets.getAndRemoveAll() {
		socket.onDisconnect(reason, message)
	}

	// Acknowledgements that never arrived are released with the session.
	s.acks.removeAll()
	s.registry.DeleteSession(s.id)
}

// Called by the transport layer when conn was closed.
func (s *Session) onConnectionClose(conn TransportConnection, err error) {
	if s.Connection() != conn {
		s.debug.Log("Inactive connection closed", conn.Transport().Name())
		return
	}
	if err != nil {
		s.reportError(fmt.Errorf("sio: connection of session %s failed: %w", s.id, err))
	} else {
		s.setDisconnectReason(ReasonClosedRemotely, "")
	}
	s.OnShutdown()
}

func (s *Session) resetTimeout() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.cancelTimeout != nil {
		s.cancelTimeout()
		s.cancelTimeout = nil
	}
	if s.timedOut || s.timeout <= 0 || s.state == StateClosed {
		return
	}

	s.timeoutGen++
	gen := s.timeoutGen
	s.cancelTimeout = s.scheduler.Schedule(func() { s.onTimeout(gen) }, s.timeout)
}

func (s *Session) onTimeout(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateMu.Lock()
	// A timer that was reset while firing is stale.
	if s.timedOut || gen != s.timeoutGen {
		s.stateMu.Unlock()
		return
	}
	s.timedOut = true
	s.cancelTimeout = nil
	s.stateMu.Unlock()

	s.debug.Log("Timed out")
	s.close(ReasonTimeout)
}

// emit sends an event to the peer's socket in nsp. If the last
// argument is an acknowledgement callback, it is called with the
// arguments of the peer's acknowledgement.
func (s *Session) emit(nsp string, event string, args []any) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}

	header := &parser.PacketHeader{Type: parser.PacketTypeEvent, Namespace: nsp}
	if len(args) > 0 {
		var ack AckCallback
		switch f := args[len(args)-1].(type) {
		case AckCallback:
			ack = f
		case func(args Args) error:
			ack = f
		}
		if ack != nil {
			args = args[:len(args)-1]
			id := s.NewPacketID()
			header.ID = &id
			s.acks.set(id, ack)
		}
	}

	v := make([]any, 0, 1+len(args))
	v = append(v, event)
	v = append(v, args...)
	return s.sendPacket(header, v)
}

func (s *Session) sendConnectError(nsp string, err error) {
	var connectErr *ConnectError
	if errors.As(err, &connectErr) {
		if connectErr.Data != nil {
			s.sendError(nsp, connectErr.Data)
		} else {
			s.sendError(nsp, connectErr.Message)
		}
		return
	}
	s.sendError(nsp, err.Error())
}

func (s *Session) sendError(nsp string, data any) {
	s.sendPacket(&parser.PacketHeader{Type: parser.PacketTypeError, Namespace: nsp}, data)
}

func (s *Session) sendDisconnect(nsp string) error {
	return s.sendPacket(&parser.PacketHeader{Type: parser.PacketTypeDisconnect, Namespace: nsp}, nil)
}

// sendPacket encodes the packet and sends it over the active connection.
// Attachments go out as binary messages right after the packet.
func (s *Session) sendPacket(header *parser.PacketHeader, v any) error {
	buffers, err := s.parser.Encode(header, v)
	if err != nil {
		return err
	}

	packets := make([]*eioparser.Packet, len(buffers))
	for i, buf := range buffers {
		packets[i], err = eioparser.NewPacket(eioparser.PacketTypeMessage, i > 0, buf)
		if err != nil {
			return wrapInternalError(err)
		}
	}
	return s.send(packets...)
}

func (s *Session) send(packets ...*eioparser.Packet) error {
	s.stateMu.Lock()
	if s.holding {
		s.held = append(s.held, packets...)
		s.stateMu.Unlock()
		return nil
	}
	s.stateMu.Unlock()

	for {
		conn := s.Connection()
		if conn == nil {
			return ErrNoConnection
		}

		err := conn.Send(packets...)
		if err == nil {
			return nil
		}
		// The connection was swapped while sending. Retry on the new one.
		if errors.Is(err, transport.ErrClosed) && s.Connection() != conn {
			continue
		}
		s.onSendError(conn, err)
		return err
	}
}

// Transport failures tear the connection down.
func (s *Session) onSendError(conn TransportConnection, err error) {
	if errors.Is(err, transport.ErrClosed) {
		return
	}
	s.reportError(fmt.Errorf("sio: send failed: %w", err))
	if s.Connection() == conn {
		s.setDisconnectReason(ReasonError, err.Error())
		conn.Abort()
	}
}

func (s *Session) reportError(err error) {
	s.debug.Log("Error", err)
	s.registry.onError(err)
}

// disconnectSocket tells the peer that its socket in nsp is disconnected,
// and removes the socket.
func (s *Session) disconnectSocket(nsp string, reason Reason) {
	socket, ok := s.sockets.remove(nsp)
	if !ok {
		return
	}
	err := s.sendDisconnect(nsp)
	if err != nil {
		s.debug.Log("Sending DISCONNECT failed", err)
	}
	socket.onDisconnect(reason, "")
}
