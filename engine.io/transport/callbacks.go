package transport

import (
	"github.com/karagenc/sioengine/internal/sync"

	"github.com/karagenc/sioengine/engine.io/parser"
)

type (
	PacketCallback func(packets ...*parser.Packet)
	// err is nil if the transport was closed gracefully.
	CloseCallback func(transportName string, err error)
)

// Callbacks connect a transport to the connection that owns it.
// The transport is created first, so they're set afterwards.
type Callbacks struct {
	mu       sync.RWMutex
	onPacket PacketCallback
	onClose  CloseCallback
}

func NewCallbacks() *Callbacks { return new(Callbacks) }

func (c *Callbacks) Set(onPacket PacketCallback, onClose CloseCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPacket = onPacket
	c.onClose = onClose
}

// Packets that arrive before Set are dropped.
func (c *Callbacks) OnPacket(packets ...*parser.Packet) {
	c.mu.RLock()
	f := c.onPacket
	c.mu.RUnlock()
	if f != nil {
		f(packets...)
	}
}

func (c *Callbacks) OnClose(transportName string, err error) {
	c.mu.RLock()
	f := c.onClose
	c.mu.RUnlock()
	if f != nil {
		f(transportName, err)
	}
}
