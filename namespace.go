package sio

import (
	"net/http"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/karagenc/sioengine/internal/sync"
	"go.uber.org/multierr"
)

// ConnectListener is called when a session connects to a namespace.
// Returning an error rejects the connection. Use *ConnectError
// to control what the peer receives.
type ConnectListener func(socket *Socket) error

// Namespace is a named channel that sessions connect to. Namespaces
// are declared up front (see SessionRegistry.CreateNamespace).
type Namespace struct {
	name string

	sockets mapset.Set[*Socket]
	// Room ID to *Room. Rooms are never removed.
	rooms sync.Map

	connectListeners []ConnectListener
	listenersMu      sync.RWMutex

	onError ErrorCallback
	debug   Debugger
}

func newNamespace(name string, debug Debugger, onError ErrorCallback) *Namespace {
	return &Namespace{
		name:    name,
		sockets: mapset.NewSet[*Socket](),
		onError: onError,
		debug:   debug.WithContext("[sio] Namespace: " + name),
	}
}

func (n *Namespace) Name() string { return n.name }

// OnConnect registers a listener. Listeners run in registration order.
func (n *Namespace) OnConnect(listener ConnectListener) {
	n.listenersMu.Lock()
	defer n.listenersMu.Unlock()
	n.connectListeners = append(n.connectListeners, listener)
}

// createSocket is the only way a Socket comes into existence.
func (n *Namespace) createSocket(session *Session, r *http.Request) *Socket {
	socket := newSocket(session, n, r)
	n.sockets.Add(socket)
	return socket
}

// Room finds or creates the room with the given ID.
func (n *Namespace) Room(id string) *Room {
	if room, ok := n.rooms.Load(id); ok {
		return room.(*Room)
	}
	// Another goroutine might install its room first. In that case, ours is dropped.
	room, _ := n.rooms.LoadOrStore(id, newRoom(id, n))
	return room.(*Room)
}

// In is an alias of Room.
func (n *Namespace) In(id string) *Room { return n.Room(id) }

func (n *Namespace) forEachRoom(f func(room *Room)) {
	n.rooms.Range(func(_, value any) bool {
		f(value.(*Room))
		return true
	})
}

// onConnect runs the connect listeners. The first failing listener
// stops the chain and its error is returned.
func (n *Namespace) onConnect(socket *Socket) error {
	n.listenersMu.RLock()
	listeners := make([]ConnectListener, len(n.connectListeners))
	copy(listeners, n.connectListeners)
	n.listenersMu.RUnlock()

	for _, listener := range listeners {
		err := callConnectListener(listener, socket)
		if err != nil {
			return err
		}
	}
	return nil
}

func callConnectListener(listener ConnectListener, socket *Socket) (err error) {
	defer recoverError(&err)
	return listener(socket)
}

func (n *Namespace) onDisconnect(socket *Socket, reason Reason, message string) {
	n.debug.Log("Socket disconnected", socket.ID(), reason)
	n.forEachRoom(func(room *Room) {
		room.Leave(socket)
	})
	n.sockets.Remove(socket)
}

func (n *Namespace) Sockets() []*Socket { return n.sockets.ToSlice() }

func (n *Namespace) Len() int { return n.sockets.Cardinality() }

// Emit sends the event to every socket of the namespace.
// Failures don't stop the fan-out; they are combined into the returned error.
func (n *Namespace) Emit(event string, args ...any) error {
	return emitAll(n.sockets, nil, event, args)
}

// Broadcast sends the event to every socket of the namespace except sender.
func (n *Namespace) Broadcast(sender *Socket, event string, args ...any) error {
	return emitAll(n.sockets, sender, event, args)
}

// The set is copied first. Writes can block, and the set must not stay locked meanwhile.
func emitAll(sockets mapset.Set[*Socket], except *Socket, event string, args []any) (err error) {
	for _, socket := range sockets.ToSlice() {
		if socket != except {
			err = multierr.Append(err, socket.Emit(event, args...))
		}
	}
	return
}
