package sio

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Room is a group of sockets within a namespace.
type Room struct {
	id      string
	nsp     *Namespace
	sockets mapset.Set[*Socket]
}

func newRoom(id string, nsp *Namespace) *Room {
	return &Room{
		id:      id,
		nsp:     nsp,
		sockets: mapset.NewSet[*Socket](),
	}
}

func (r *Room) ID() string { return r.id }

func (r *Room) Namespace() *Namespace { return r.nsp }

func (r *Room) Join(socket *Socket) { r.sockets.Add(socket) }

func (r *Room) Leave(socket *Socket) { r.sockets.Remove(socket) }

func (r *Room) Contains(socket *Socket) bool { return r.sockets.Contains(socket) }

func (r *Room) Sockets() []*Socket { return r.sockets.ToSlice() }

func (r *Room) Len() int { return r.sockets.Cardinality() }

// Broadcast sends the event to every member except sender.
// sender doesn't have to be a member.
func (r *Room) Broadcast(sender *Socket, event string, args ...any) error {
	return emitAll(r.sockets, sender, event, args)
}

// Emit sends the event to every member.
func (r *Room) Emit(event string, args ...any) error {
	return emitAll(r.sockets, nil, event, args)
}
