package sio

import (
	"net/http"
	"net/url"

	"github.com/karagenc/sioengine/internal/sync"
)

type (
	// EventListener handles an event sent by the peer. If the peer
	// requested an acknowledgement, a non-empty result is sent back as its arguments.
	EventListener func(args Args, ackRequested bool) (result []any, err error)

	// DisconnectListener is called once the socket is disconnected.
	DisconnectListener func(reason Reason, message string) error

	// AckCallback receives the arguments of an acknowledgement.
	// Pass it as the last argument of Emit to request one.
	AckCallback func(args Args) error
)

// Socket is the binding of a session to a namespace.
type Socket struct {
	id      string
	session *Session
	nsp     *Namespace
	request *http.Request

	query   url.Values
	queryMu sync.RWMutex

	listeners   map[string]EventListener
	listenersMu sync.RWMutex

	disconnectListeners   []DisconnectListener
	disconnectListenersMu sync.Mutex
	disconnectOnce        sync.Once

	debug Debugger
}

func newSocket(session *Session, nsp *Namespace, r *http.Request) *Socket {
	id := session.ID()
	if nsp.Name() != "/" {
		id = nsp.Name() + "#" + id
	}
	return &Socket{
		id:        id,
		session:   session,
		nsp:       nsp,
		request:   r,
		listeners: make(map[string]EventListener),
		debug:     session.debug.WithContext("[sio] Socket with ID: " + id),
	}
}

// ID is the session ID for the root namespace,
// and "<namespace>#<session ID>" for the others.
func (s *Socket) ID() string { return s.id }

func (s *Socket) Namespace() *Namespace { return s.nsp }

func (s *Socket) Session() *Session { return s.session }

// Request returns the request of the connection the socket was created on.
func (s *Socket) Request() *http.Request { return s.request }

// Query returns the query parameters sent along with the CONNECT packet
// of the namespace. For the root namespace these are the parameters of
// the handshake request.
func (s *Socket) Query() url.Values {
	s.queryMu.RLock()
	defer s.queryMu.RUnlock()
	if s.query == nil && s.request != nil {
		return s.request.URL.Query()
	}
	return s.query
}

func (s *Socket) setQuery(rawQuery string) {
	if rawQuery == "" {
		return
	}
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		s.debug.Log("Invalid query", err)
		return
	}
	s.queryMu.Lock()
	s.query = query
	s.queryMu.Unlock()
}

// On registers the listener of an event, replacing the previous one.
func (s *Socket) On(event string, listener EventListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners[event] = listener
}

func (s *Socket) Off(event string) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	delete(s.listeners, event)
}

// onEvent calls the listener of the event. Events without a listener are ignored.
func (s *Socket) onEvent(event string, args Args, ackRequested bool) (result []any, err error) {
	s.listenersMu.RLock()
	listener, ok := s.listeners[event]
	s.listenersMu.RUnlock()
	if !ok {
		s.debug.Log("No listener for event", event)
		return nil, nil
	}

	defer recoverError(&err)
	return listener(args, ackRequested)
}

// Emit sends an event to the peer. If the last argument is an
// AckCallback (or a func(Args) error), it is called with the arguments
// of the peer's acknowledgement.
func (s *Socket) Emit(event string, args ...any) error {
	if IsEventReserved(event) {
		return errReservedEvent(event)
	}
	return s.session.emit(s.nsp.Name(), event, args)
}

func (s *Socket) Join(room string) { s.nsp.Room(room).Join(s) }

func (s *Socket) Leave(room string) { s.nsp.Room(room).Leave(s) }

func (s *Socket) LeaveAll() {
	s.nsp.forEachRoom(func(room *Room) {
		room.Leave(s)
	})
}

// Rooms returns the IDs of the rooms the socket is in.
func (s *Socket) Rooms() (rooms []string) {
	s.nsp.forEachRoom(func(room *Room) {
		if room.Contains(s) {
			rooms = append(rooms, room.ID())
		}
	})
	return
}

// Broadcast sends the event to every other socket of the namespace.
func (s *Socket) Broadcast(event string, args ...any) error {
	return s.nsp.Broadcast(s, event, args...)
}

// BroadcastTo sends the event to every other socket in the room.
func (s *Socket) BroadcastTo(room string, event string, args ...any) error {
	return s.nsp.Room(room).Broadcast(s, event, args...)
}

// Disconnect disconnects the socket from its namespace.
// If closeConnection is true, the whole connection is closed.
func (s *Socket) Disconnect(closeConnection bool) error {
	conn := s.session.Connection()
	if conn == nil {
		return ErrNoConnection
	}
	conn.Disconnect(s.nsp.Name(), closeConnection)
	return nil
}

// OnDisconnect registers a listener. Listeners run in registration order.
func (s *Socket) OnDisconnect(listener DisconnectListener) {
	s.disconnectListenersMu.Lock()
	defer s.disconnectListenersMu.Unlock()
	s.disconnectListeners = append(s.disconnectListeners, listener)
}

// onDisconnect runs the disconnect listeners, then removes the socket
// from its namespace. A failing listener doesn't stop the others.
func (s *Socket) onDisconnect(reason Reason, message string) {
	s.disconnectOnce.Do(func() {
		s.disconnectListenersMu.Lock()
		listeners := make([]DisconnectListener, len(s.disconnectListeners))
		copy(listeners, s.disconnectListeners)
		s.disconnectListenersMu.Unlock()

		for _, listener := range listeners {
			err := callDisconnectListener(listener, reason, message)
			if err != nil {
				s.session.reportError(err)
			}
		}
		s.nsp.onDisconnect(s, reason, message)
	})
}

func callDisconnectListener(listener DisconnectListener, reason Reason, message string) (err error) {
	defer recoverError(&err)
	return listener(reason, message)
}
